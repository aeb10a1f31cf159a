// Package cli implements the interactive terminal menu surface: the
// .ovpn location picker and the configuration submenus (display
// parsing, language, credentials, post-connection script, desktop
// launcher, DoH/LAN blocking). Adapted from the teacher's cli/cli.go
// tabwriter-based listing idiom, restructured around the spec's
// single-tunnel picker rather than a multi-profile table.
package cli

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/term"

	"github.com/yllada/openvpn-supervisor/common"
	"github.com/yllada/openvpn-supervisor/config"
)

// CLI drives the terminal menu surface against a single Config rooted
// at workDir.
type CLI struct {
	workDir string
	cfg     *config.Config
	in      *bufio.Reader
}

// New returns a CLI bound to cfg, persisted under workDir.
func New(workDir string, cfg *config.Config) *CLI {
	return &CLI{workDir: workDir, cfg: cfg, in: bufio.NewReader(os.Stdin)}
}

// Locations lists the .ovpn files available under workDir, sorted by
// name, with their extension stripped.
func (c *CLI) Locations() ([]string, error) {
	entries, err := os.ReadDir(c.workDir)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", c.workDir, err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".ovpn") {
			continue
		}
		names = append(names, strings.TrimSuffix(e.Name(), ".ovpn"))
	}
	sort.Strings(names)
	return names, nil
}

// PickLocation renders the location picker in as many columns as the
// terminal width allows (the same packing the original tool uses) and
// reads a choice. Returns the 1-based index into locations, or -1 if
// the user asked to return to the menu.
func (c *CLI) PickLocation(locations []string, lastChoice int) (int, error) {
	fmt.Println("Available locations:")
	if len(locations) == 0 {
		fmt.Println("  (none found — drop a .ovpn file next to the binary)")
		return -1, fmt.Errorf("no locations available")
	}

	width := terminalWidth()
	maxDigits := len(strconv.Itoa(len(locations)))
	maxItemWidth := 0
	for i, loc := range locations {
		item := fmt.Sprintf("  %*d) %s", maxDigits, i+1, loc)
		if len(item) > maxItemWidth {
			maxItemWidth = len(item)
		}
	}
	columnWidth := maxItemWidth + 4
	columns := width / columnWidth
	if columns == 0 {
		columns = 1
	}
	rows := (len(locations) + columns - 1) / columns

	for row := 0; row < rows; row++ {
		var line strings.Builder
		for col := 0; col < columns; col++ {
			idx := row + col*rows
			if idx >= len(locations) {
				continue
			}
			num := idx + 1
			item := fmt.Sprintf("  %*d) %s", maxDigits, num, locations[idx])
			if col < columns-1 {
				line.WriteString(fmt.Sprintf("%-*s", columnWidth, item))
			} else {
				line.WriteString(item)
			}
		}
		fmt.Println(line.String())
	}

	fmt.Println()
	fmt.Println("Ctrl+C to exit.")

	prompt := fmt.Sprintf("Pick a location [1-%d]: ", len(locations))
	if lastChoice >= 1 && lastChoice <= len(locations) {
		prompt = fmt.Sprintf("Pick a location [1-%d, Enter for %s]: ", len(locations), locations[lastChoice-1])
	}

	for {
		fmt.Print(prompt)
		line, err := c.in.ReadString('\n')
		if err != nil {
			return -1, err
		}
		line = strings.TrimSpace(line)

		if strings.EqualFold(line, "m") {
			return -1, nil
		}
		if line == "" && lastChoice >= 1 && lastChoice <= len(locations) {
			return lastChoice, nil
		}

		choice, err := strconv.Atoi(line)
		if err != nil || choice < 1 || choice > len(locations) {
			fmt.Println("Invalid choice.")
			continue
		}
		return choice, nil
	}
}

func terminalWidth() int {
	if width, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && width > 0 {
		return width
	}
	return 80
}

// MainMenu runs the configuration submenu loop until the user backs out.
func (c *CLI) MainMenu() error {
	for {
		fmt.Println("=======================================")
		fmt.Println("    Configuration")
		fmt.Println("=======================================")
		fmt.Println("  1) Display format")
		fmt.Println("  2) Language")
		fmt.Println("  3) Credentials")
		fmt.Println("  4) Post-connection script")
		fmt.Println("  5) Desktop launcher")
		fmt.Println("  6) DoH blocking")
		fmt.Println("  7) LAN blocking")
		fmt.Println("  8) Back")
		fmt.Print("\n> ")

		line, err := c.in.ReadString('\n')
		if err != nil {
			return err
		}
		switch strings.TrimSpace(line) {
		case "1":
			c.configureDisplay()
		case "2":
			c.configureLanguage()
		case "3":
			c.configureCredentials()
		case "4":
			c.configurePostScript()
		case "5":
			c.createDesktopLauncher()
		case "6":
			c.toggleDoH()
		case "7":
			c.toggleLAN()
		case "8", "":
			return nil
		}
	}
}

func (c *CLI) configureDisplay() {
	locations, err := c.Locations()
	if err != nil || len(locations) == 0 {
		fmt.Println("No .ovpn files found to derive a sample name from.")
		return
	}
	sample := locations[0]
	fmt.Printf("Sample location name: %s\n\n", sample)
	fmt.Println("Format A: city<sep>country   Format B: city only")
	fmt.Print("Format [A/B]: ")
	line, _ := c.in.ReadString('\n')
	format := strings.ToUpper(strings.TrimSpace(line))
	if format != "A" && format != "B" {
		format = "B"
	}

	fmt.Print("Field separator [-]: ")
	line, _ = c.in.ReadString('\n')
	sep := strings.TrimSpace(line)
	if sep == "" {
		sep = "-"
	}

	parts := strings.Split(sample, sep)
	fmt.Println("Parts:")
	for i, p := range parts {
		fmt.Printf("  %d: %s\n", i, p)
	}

	cityIdx := c.readFieldIndex("City field index: ", len(parts))
	countryIdx := -1
	if format == "A" {
		countryIdx = c.readFieldIndex("Country field index: ", len(parts))
	}

	c.cfg.DisplayConfigured = true
	c.cfg.DisplayFormat = format
	c.cfg.Separator = sep
	c.cfg.CityIndex = cityIdx
	c.cfg.CountryIndex = countryIdx
	c.save()
	fmt.Println("Saved.")
}

func (c *CLI) readFieldIndex(prompt string, n int) int {
	for {
		fmt.Print(prompt)
		line, err := c.in.ReadString('\n')
		if err != nil {
			return 0
		}
		idx, err := strconv.Atoi(strings.TrimSpace(line))
		if err == nil && idx >= 0 && idx < n {
			return idx
		}
	}
}

func (c *CLI) configureLanguage() {
	fmt.Println("  1) Español")
	fmt.Println("  2) English")
	fmt.Print("\n> ")
	line, _ := c.in.ReadString('\n')
	switch strings.TrimSpace(line) {
	case "1":
		c.cfg.Language = "es"
	case "2":
		c.cfg.Language = "en"
	default:
		return
	}
	c.save()
	fmt.Printf("Language set to %s\n", c.cfg.Language)
}

func (c *CLI) configureCredentials() {
	fmt.Print("Username: ")
	line, _ := c.in.ReadString('\n')
	username := strings.TrimSpace(line)

	fmt.Print("Password: ")
	passwordBytes, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Println()
	if err != nil {
		fmt.Println("Could not read password.")
		return
	}
	password := strings.TrimSpace(string(passwordBytes))

	if username == "" || password == "" {
		fmt.Println("Both username and password are required; nothing saved.")
		return
	}

	key, err := config.MachineKey()
	if err != nil {
		fmt.Printf("Could not derive the storage key: %v\n", err)
		return
	}
	if err := c.cfg.SetCredentials(username, password, key); err != nil {
		fmt.Printf("Could not save credentials: %v\n", err)
		return
	}
	c.save()
	fmt.Println("Credentials saved.")
}

func (c *CLI) configurePostScript() {
	if c.cfg.PostScript != "" {
		fmt.Printf("Current post-connection script: %s\n", c.cfg.PostScript)
	} else {
		fmt.Println("No post-connection script configured.")
	}
	fmt.Println("Enter a path, 'd' to delete, or Enter to keep the current value.")
	fmt.Print("> ")
	line, _ := c.in.ReadString('\n')
	path := strings.TrimSpace(line)

	switch {
	case path == "":
		fmt.Println("Kept as-is.")
		return
	case strings.EqualFold(path, "d"):
		c.cfg.PostScript = ""
		c.save()
		fmt.Println("Removed.")
		return
	}

	path = strings.Trim(path, "'\"")
	if !filepath.IsAbs(path) {
		candidate := filepath.Join(c.workDir, path)
		if _, err := os.Stat(candidate); err == nil {
			path = candidate
		}
	}

	info, err := os.Stat(path)
	if err != nil || info.Mode()&0111 == 0 {
		fmt.Println("Warning: path does not exist or is not executable; saving it anyway.")
	}
	c.cfg.PostScript = path
	c.save()
	fmt.Printf("Saved: %s\n", path)
}

func (c *CLI) toggleDoH() {
	fmt.Printf("DoH blocking is currently %s.\n", onOff(c.cfg.BlockDoH))
	fmt.Print("Toggle? [y/N]: ")
	line, _ := c.in.ReadString('\n')
	if yes(line) {
		c.cfg.BlockDoH = !c.cfg.BlockDoH
		c.save()
		fmt.Printf("DoH blocking is now %s.\n", onOff(c.cfg.BlockDoH))
	}
}

func (c *CLI) toggleLAN() {
	fmt.Printf("LAN blocking is currently %s.\n", onOff(c.cfg.BlockLAN))
	fmt.Print("Toggle? [y/N]: ")
	line, _ := c.in.ReadString('\n')
	if yes(line) {
		c.cfg.BlockLAN = !c.cfg.BlockLAN
		c.save()
		fmt.Printf("LAN blocking is now %s.\n", onOff(c.cfg.BlockLAN))
	}
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}

func yes(line string) bool {
	line = strings.ToLower(strings.TrimSpace(line))
	return strings.HasPrefix(line, "y") || strings.HasPrefix(line, "s")
}

func (c *CLI) save() {
	if err := c.cfg.Save(filepath.Join(c.workDir, "config.json")); err != nil {
		fmt.Printf("Could not save configuration: %v\n", err)
	}
}

// createDesktopLauncher writes a .desktop entry invoking this binary,
// so the supervisor can be launched from a desktop menu even though it
// has no GUI of its own.
func (c *CLI) createDesktopLauncher() {
	exePath, err := os.Executable()
	if err != nil {
		fmt.Printf("Could not resolve executable path: %v\n", err)
		return
	}

	launcherDir := filepath.Join(os.Getenv("HOME"), ".local", "share", "applications")
	if err := common.EnsureDir(launcherDir); err != nil {
		fmt.Printf("Could not create %s: %v\n", launcherDir, err)
		return
	}

	entries, _ := os.ReadDir(launcherDir)
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), "openvpn-supervisor") && strings.HasSuffix(e.Name(), ".desktop") {
			_ = os.Remove(filepath.Join(launcherDir, e.Name()))
		}
	}

	launcherPath := filepath.Join(launcherDir, "openvpn-supervisor.desktop")
	content := fmt.Sprintf(`[Desktop Entry]
Version=1.0
Type=Application
Name=OpenVPN Supervisor
Comment=Automated OpenVPN connection supervisor
Exec=%s
Path=%s
Icon=network-vpn
Terminal=true
Categories=Network;
`, exePath, filepath.Dir(exePath))

	if err := os.WriteFile(launcherPath, []byte(content), 0755); err != nil {
		fmt.Printf("Could not write launcher: %v\n", err)
		return
	}
	fmt.Printf("Launcher created at %s\n", launcherPath)
}
