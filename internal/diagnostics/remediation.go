package diagnostics

import (
	goruntime "runtime"
	"strings"
)

// installOption is one package-manager route to an ffmpeg install.
type installOption struct {
	manager  string
	commands [][]string
}

// installOptionsFor returns ffmpeg install routes per operating system.
func installOptionsFor(goos string) []installOption {
	switch goos {
	case "windows":
		return []installOption{
			{
				manager: "winget",
				commands: [][]string{
					{"winget", "install", "--id", "Gyan.FFmpeg", "--exact"},
				},
			},
			{
				manager: "choco",
				commands: [][]string{
					{"choco", "install", "ffmpeg", "-y"},
				},
			},
			{
				manager: "scoop",
				commands: [][]string{
					{"scoop", "install", "ffmpeg"},
				},
			},
		}
	case "darwin":
		return []installOption{
			{
				manager: "brew",
				commands: [][]string{
					{"brew", "install", "ffmpeg"},
				},
			},
		}
	default:
		return []installOption{
			{
				manager: "apt-get",
				commands: [][]string{
					{"sudo", "apt-get", "update"},
					{"sudo", "apt-get", "install", "-y", "ffmpeg"},
				},
			},
			{
				manager: "dnf",
				commands: [][]string{
					{"sudo", "dnf", "install", "-y", "ffmpeg"},
				},
			},
			{
				manager: "pacman",
				commands: [][]string{
					{"sudo", "pacman", "-Sy", "--noconfirm", "ffmpeg"},
				},
			},
			{
				manager: "zypper",
				commands: [][]string{
					{"sudo", "zypper", "install", "-y", "ffmpeg"},
				},
			},
		}
	}
}

// RemediationFor builds install guidance for the given GOOS.
func RemediationFor(goos string) string {
	var b strings.Builder
	b.WriteString("FFmpeg was not found on this system.\n\n")

	switch goos {
	case "windows":
		b.WriteString("Windows: download a build from https://ffmpeg.org/download.html, extract it and add its bin folder to PATH, or use a package manager:\n")
	case "darwin":
		b.WriteString("macOS:\n")
	default:
		b.WriteString("Linux:\n")
	}

	for _, option := range installOptionsFor(goos) {
		b.WriteString("  [" + option.manager + "]\n")
		for _, command := range option.commands {
			b.WriteString("    " + strings.Join(command, " ") + "\n")
		}
	}

	b.WriteString("\nContainer or hosted deployments: install the ffmpeg system package in the image, " +
		"or set VT_ENCODER_CANDIDATES to the absolute path of an ffmpeg binary, then restart the server.")
	return b.String()
}

func currentGOOS() string {
	return goruntime.GOOS
}
