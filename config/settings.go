package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Settings holds the free-form server settings of spec.md §6.3, plus
// the ambient knobs SPEC_FULL.md adds (workers, log-level, queue-cap),
// bound through viper/cobra the way pixiecore/cli's initConfig and
// serverConfigFlags bind theirs.
type Settings struct {
	DBHost     string
	Database   string
	DBUser     string
	DBPassword string
	Server     string
	Foreground bool
	Testing    bool
	Workers    int
	QueueCap   int
	LogLevel   string
}

// BindFlags registers the flags serverFromFlags-style commands read,
// mirroring pixiecore/cli's serverConfigFlags.
func BindFlags(cmd *cobra.Command) {
	cmd.Flags().String("dbhost", "localhost", "MySQL host to connect to")
	cmd.Flags().String("database", "dhcp", "MySQL database name")
	cmd.Flags().String("dbuser", "", "MySQL user")
	cmd.Flags().String("dbpassword", "", "MySQL password")
	cmd.Flags().String("server", "", "Address to listen on, or empty for all interfaces")
	cmd.Flags().Bool("foreground", false, "Recorded in Settings.Foreground; the server never daemonizes and always stays attached")
	cmd.Flags().Bool("testing", false, "Dump received frames instead of replying to them")
	cmd.Flags().Int("workers", 5, "Worker pool size per listener")
	cmd.Flags().Int("queue-cap", 20, "Recorded in Settings.QueueCap; the server caps each listener's free-list at workers*4 and does not read this value")
	cmd.Flags().String("log-level", "info", "Logging level (debug, info, warn, error)")

	viper.BindPFlag("dbhost", cmd.Flags().Lookup("dbhost"))
	viper.BindPFlag("database", cmd.Flags().Lookup("database"))
	viper.BindPFlag("dbuser", cmd.Flags().Lookup("dbuser"))
	viper.BindPFlag("dbpassword", cmd.Flags().Lookup("dbpassword"))
	viper.BindPFlag("server", cmd.Flags().Lookup("server"))
	viper.BindPFlag("foreground", cmd.Flags().Lookup("foreground"))
	viper.BindPFlag("testing", cmd.Flags().Lookup("testing"))
	viper.BindPFlag("workers", cmd.Flags().Lookup("workers"))
	viper.BindPFlag("queue-cap", cmd.Flags().Lookup("queue-cap"))
	viper.BindPFlag("log-level", cmd.Flags().Lookup("log-level"))
}

// InitViper wires environment-variable overrides, mirroring
// pixiecore/cli's initConfig (viper.SetEnvPrefix + AutomaticEnv).
func InitViper() {
	viper.SetEnvPrefix("dhcpdb")
	replacer := strings.NewReplacer("-", "_")
	viper.SetEnvKeyReplacer(replacer)
	viper.AutomaticEnv()
}

// LoadFile merges a §6.3 configuration file's free-form settings into
// viper, and returns the file's option-grammar directives (if any) for
// the caller to fold into the wire.Grammar separately — viper has no
// notion of the bespoke option-directive syntax.
func LoadFile(path string) (*Directives, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	d, err := Parse(f)
	if err != nil {
		return nil, err
	}
	for k, v := range d.Settings {
		viper.Set(k, v)
	}
	return d, nil
}

// FromViper reads the bound settings out of viper's merged view: in
// ascending precedence, flag defaults, env, flags set on the command
// line, then config-file settings (LoadFile applies those with
// viper.Set, which overrides everything else).
func FromViper() Settings {
	return Settings{
		DBHost:     viper.GetString("dbhost"),
		Database:   viper.GetString("database"),
		DBUser:     viper.GetString("dbuser"),
		DBPassword: viper.GetString("dbpassword"),
		Server:     viper.GetString("server"),
		Foreground: viper.GetBool("foreground"),
		Testing:    viper.GetBool("testing"),
		Workers:    viper.GetInt("workers"),
		QueueCap:   viper.GetInt("queue-cap"),
		LogLevel:   viper.GetString("log-level"),
	}
}

// ParseTruthy reports whether s (trimmed) parses as true with
// strconv.ParseBool; anything unparsable is false. Settings loaded by
// LoadFile do not pass through it: viper converts them on GetBool.
func ParseTruthy(s string) bool {
	b, err := strconv.ParseBool(strings.TrimSpace(s))
	return err == nil && b
}
