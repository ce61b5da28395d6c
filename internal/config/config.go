package config

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/snapetech/strmsync/internal/safeurl"
)

// ErrMissing is returned by Validate when a required setting is empty.
var ErrMissing = errors.New("missing required setting")

// Layout names.
const (
	LayoutBasic    = "basic"
	LayoutExtended = "extended"
)

// EnvPrefix is prepended to every key when read from the environment (STRMSYNC_API_URL, ...).
const EnvPrefix = "STRMSYNC"

// Config holds provider credentials, output paths, schedule and tuning knobs.
// Load from environment, an optional strmsync.yaml, and defaults (in that priority).
type Config struct {
	// Provider (Xtream player_api)
	APIURL    string `mapstructure:"api_url"` // e.g. http://provider:8080 (or .../player_api.php)
	Username  string `mapstructure:"username"`
	Password  string `mapstructure:"password"`
	UserAgent string `mapstructure:"user_agent"`

	// Output
	StrmFolder    string `mapstructure:"strm_folder"`
	Layout        string `mapstructure:"layout"` // basic | extended
	Transliterate bool   `mapstructure:"transliterate"`

	// Paths (default under StrmFolder)
	HistoryFile   string `mapstructure:"history_file"`
	StateDB       string `mapstructure:"state_db"`
	MetadataCache string `mapstructure:"metadata_cache"`

	// Schedule: UpdateTime "HH:MM[:SS]" with optional UpdateDays "mon,wed,fri"; Cron overrides both.
	UpdateTime string `mapstructure:"update_time"`
	UpdateDays string `mapstructure:"update_days"`
	Cron       string `mapstructure:"cron"`
	SyncOnBoot bool   `mapstructure:"sync_on_boot"`

	// Fetching
	Workers           int           `mapstructure:"workers"`
	RequestTimeout    time.Duration `mapstructure:"request_timeout"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second"`

	// Year lookup for the extended layout. Empty key = catalog years only.
	TMDBAPIKey   string `mapstructure:"tmdb_api_key"`
	TMDBLanguage string `mapstructure:"tmdb_language"`

	ListenAddr string `mapstructure:"listen_addr"` // state + metrics; "" disables
	LogLevel   string `mapstructure:"log_level"`
	SafeLogs   bool   `mapstructure:"safe_logs"`

	SubscriptionFile string `mapstructure:"subscription_file"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("api_url", "")
	v.SetDefault("username", "")
	v.SetDefault("password", "")
	v.SetDefault("user_agent", "strmsync/1.0")
	v.SetDefault("strm_folder", "./strm")
	v.SetDefault("layout", LayoutBasic)
	v.SetDefault("transliterate", false)
	v.SetDefault("history_file", "")
	v.SetDefault("state_db", "")
	v.SetDefault("metadata_cache", "")
	v.SetDefault("update_time", "03:00")
	v.SetDefault("update_days", "")
	v.SetDefault("cron", "")
	v.SetDefault("sync_on_boot", false)
	v.SetDefault("workers", 0)
	v.SetDefault("request_timeout", 10*time.Second)
	v.SetDefault("requests_per_second", 8.0)
	v.SetDefault("tmdb_api_key", "")
	v.SetDefault("tmdb_language", "pt-BR")
	v.SetDefault("listen_addr", ":8099")
	v.SetDefault("log_level", "info")
	v.SetDefault("safe_logs", true)
	v.SetDefault("subscription_file", "")
}

// Load reads configuration. path may name a YAML file explicitly; when empty, strmsync.yaml is
// looked up in the working directory and $HOME/.config/strmsync and is optional.
// Call LoadEnvFile(".env") before Load to pick up a .env file.
// If Username or Password are empty, the subscription file ("Username:" / "Password:" lines) is tried.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("strmsync")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", "strmsync"))
		}
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	c := &Config{}
	if err := v.Unmarshal(c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	c.applyDerived()

	if c.Username == "" || c.Password == "" {
		if user, pass, err := readSubscriptionFile(c.SubscriptionFile); err == nil {
			if c.Username == "" {
				c.Username = user
			}
			if c.Password == "" {
				c.Password = pass
			}
		}
	}
	return c, nil
}

func (c *Config) applyDerived() {
	c.APIURL = strings.TrimSuffix(strings.TrimSpace(c.APIURL), "/")
	c.Layout = strings.ToLower(strings.TrimSpace(c.Layout))
	if c.Layout == "" {
		c.Layout = LayoutBasic
	}
	if c.StrmFolder == "" {
		c.StrmFolder = "./strm"
	}
	if c.HistoryFile == "" {
		c.HistoryFile = filepath.Join(c.StrmFolder, "history.json")
	}
	if c.StateDB == "" {
		c.StateDB = filepath.Join(c.StrmFolder, ".strmsync.db")
	}
	if c.MetadataCache == "" {
		c.MetadataCache = filepath.Join(c.StrmFolder, ".metadata.db")
	}
	if c.Workers <= 0 {
		c.Workers = runtime.NumCPU() * 2
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = 10 * time.Second
	}
	if c.RequestsPerSecond < 0 {
		c.RequestsPerSecond = 0
	}
}

// Validate reports settings that make a pass impossible.
func (c *Config) Validate() error {
	var missing []string
	if c.APIURL == "" {
		missing = append(missing, "api_url")
	}
	if c.Username == "" {
		missing = append(missing, "username")
	}
	if c.Password == "" {
		missing = append(missing, "password")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s (set %s_<KEY> or strmsync.yaml)", ErrMissing, strings.Join(missing, ", "), EnvPrefix)
	}
	if !safeurl.IsHTTPOrHTTPS(c.APIURL) {
		return fmt.Errorf("api_url %q: want an http:// or https:// URL", c.APIURL)
	}
	if c.Layout != LayoutBasic && c.Layout != LayoutExtended {
		return fmt.Errorf("layout %q: want %q or %q", c.Layout, LayoutBasic, LayoutExtended)
	}
	if _, err := c.ScheduleSpec(); err != nil {
		return err
	}
	return nil
}

// Extended reports whether the extended layout (capitalized subtrees, year and language tags) is on.
func (c *Config) Extended() bool {
	return c.Layout == LayoutExtended
}

var weekdays = map[string]int{
	"sun": 0, "mon": 1, "tue": 2, "wed": 3, "thu": 4, "fri": 5, "sat": 6,
}

// ScheduleSpec returns the 5-field cron expression for the configured pass time.
// Cron wins when set; otherwise UpdateTime (HH:MM or HH:MM:SS, seconds ignored) on UpdateDays
// (comma-separated weekday names, empty = every day).
func (c *Config) ScheduleSpec() (string, error) {
	if s := strings.TrimSpace(c.Cron); s != "" {
		return s, nil
	}
	parts := strings.Split(strings.TrimSpace(c.UpdateTime), ":")
	if len(parts) < 2 || len(parts) > 3 {
		return "", fmt.Errorf("update_time %q: want HH:MM", c.UpdateTime)
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return "", fmt.Errorf("update_time %q: bad hour", c.UpdateTime)
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return "", fmt.Errorf("update_time %q: bad minute", c.UpdateTime)
	}
	dow := "*"
	if days := strings.TrimSpace(c.UpdateDays); days != "" {
		seen := make(map[int]bool)
		var nums []int
		for _, d := range strings.Split(days, ",") {
			d = strings.ToLower(strings.TrimSpace(d))
			if d == "" {
				continue
			}
			if len(d) > 3 {
				d = d[:3]
			}
			n, ok := weekdays[d]
			if !ok {
				return "", fmt.Errorf("update_days: unknown day %q", d)
			}
			if !seen[n] {
				seen[n] = true
				nums = append(nums, n)
			}
		}
		if len(nums) > 0 {
			sort.Ints(nums)
			strs := make([]string, len(nums))
			for i, n := range nums {
				strs[i] = strconv.Itoa(n)
			}
			dow = strings.Join(strs, ",")
		}
	}
	return fmt.Sprintf("%d %d * * %s", minute, hour, dow), nil
}

// Secrets returns the values that must never appear in logs.
func (c *Config) Secrets() []string {
	return []string{c.Username, c.Password, c.TMDBAPIKey}
}

// readSubscriptionFile reads "Username: x" and "Password: x" from path. path may be empty to try default.
// When path is empty, globs ~/Documents/iptv.subscription.*.txt and uses the alphabetically last match
// (i.e. highest year), so the file keeps working across year-end renewals.
func readSubscriptionFile(path string) (user, pass string, err error) {
	if path == "" {
		home := os.Getenv("HOME")
		if home == "" {
			return "", "", os.ErrNotExist
		}
		pattern := filepath.Join(home, "Documents", "iptv.subscription.*.txt")
		matches, globErr := filepath.Glob(pattern)
		if globErr != nil || len(matches) == 0 {
			return "", "", os.ErrNotExist
		}
		sort.Strings(matches)
		path = matches[len(matches)-1]
	}
	path = filepath.Clean(path)
	f, err := os.Open(path)
	if err != nil {
		return "", "", err
	}
	defer f.Close()
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if strings.HasPrefix(line, "Username:") {
			user = strings.TrimSpace(strings.TrimPrefix(line, "Username:"))
		} else if strings.HasPrefix(line, "Password:") {
			pass = strings.TrimSpace(strings.TrimPrefix(line, "Password:"))
		}
	}
	if err := sc.Err(); err != nil {
		return "", "", err
	}
	if user == "" || pass == "" {
		return "", "", fmt.Errorf("subscription file: missing Username or Password")
	}
	return user, pass, nil
}
