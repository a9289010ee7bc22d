package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/go-playground/validator/v10"

	"github.com/teamcutter/patchr/internal/catalog"
	"github.com/teamcutter/patchr/internal/domain"
)

const FileName = "patchr.toml"

type Config struct {
	InstallDir  string            `toml:"install_dir" validate:"required"`
	LogLevel    string            `toml:"log_level" validate:"omitempty,oneof=trace debug info warn error"`
	MetricsFile string            `toml:"metrics_file"`
	Store       Store             `toml:"store"`
	RemotePaths RemotePaths       `toml:"remote_paths"`
	Patches     Patches           `toml:"patches"`
	AddOns      []domain.Artifact `toml:"addons" validate:"dive"`
	StoreAddOn  StoreAddOn        `toml:"store_addon"`
	Executable  Executable        `toml:"executable"`
	Download    Download          `toml:"download"`
}

type Store struct {
	Endpoint  string `toml:"endpoint" validate:"required"`
	AccessKey string `toml:"access_key" validate:"required"`
	SecretKey string `toml:"secret_key" validate:"required"`
	Region    string `toml:"region"`
	Bucket    string `toml:"bucket" validate:"required"`
	UseSSL    bool   `toml:"use_ssl"`
}

type RemotePaths struct {
	Base    string `toml:"base" validate:"required"`
	AddOns  string `toml:"addons" validate:"required"`
	Patches string `toml:"patches" validate:"required"`
	Custom  string `toml:"custom" validate:"required"`
	News    string `toml:"news" validate:"required"`
	Version string `toml:"version" validate:"required"`
}

type Patches struct {
	Core         []domain.Artifact `toml:"core" validate:"dive"`
	Misc         []domain.Artifact `toml:"misc"`
	Reserved     []domain.Artifact `toml:"reserved" validate:"dive"`
	Experimental []domain.Artifact `toml:"experimental"`
}

// StoreAddOn is the in-game store client. It only works together with its
// companion patch.
type StoreAddOn struct {
	Archive   string `toml:"archive" validate:"required"`
	Marker    string `toml:"marker" validate:"required"`
	Companion string `toml:"companion" validate:"required"`
}

type Executable struct {
	Name        string `toml:"name" validate:"required"`
	PatchedMD5  string `toml:"patched_md5" validate:"omitempty,len=32,hexadecimal"`
	Replacement string `toml:"replacement"`
}

type Download struct {
	MaxParallel    int      `toml:"max_parallel" validate:"gte=0"`
	RequestTimeout Duration `toml:"request_timeout"`
	TagCacheTTL    Duration `toml:"tag_cache_ttl"`
}

// Duration decodes TOML strings such as "90s" or "1h".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func DefaultConfig(installDir string) *Config {
	return &Config{
		InstallDir: installDir,
		LogLevel:   "info",
		RemotePaths: RemotePaths{
			Base:    "base",
			AddOns:  "addOns",
			Patches: "patches",
			Custom:  "custom",
			News:    "news",
			Version: "version.json",
		},
		StoreAddOn: StoreAddOn{
			Archive:   "AIO_Client.zip",
			Marker:    "AIO_Client/AIO_Client.toc",
			Companion: "patch-S.MPQ",
		},
		Executable: Executable{
			Name: "Wow.exe",
		},
		Download: Download{
			RequestTimeout: Duration{time.Hour},
			TagCacheTTL:    Duration{5 * time.Minute},
		},
	}
}

// Load reads the config at path on top of the defaults. An empty path looks
// for patchr.toml in installDir.
func Load(path, installDir string) (*Config, error) {
	cfg := DefaultConfig(installDir)
	if path == "" {
		path = filepath.Join(installDir, FileName)
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	if cfg.InstallDir == "" {
		cfg.InstallDir = installDir
	}
	if !filepath.IsAbs(cfg.InstallDir) {
		cfg.InstallDir = filepath.Join(filepath.Dir(path), cfg.InstallDir)
	}
	if cfg.Executable.Replacement == "" {
		cfg.Executable.Replacement = defaultReplacement(cfg.Executable.Name)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

func (c *Config) Validate() error {
	err := validate.Struct(c)
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		errs := make([]error, 0, len(verrs))
		for _, fe := range verrs {
			errs = append(errs, fmt.Errorf("%s: failed %q", fe.Namespace(), fe.Tag()))
		}
		return errors.Join(errs...)
	}
	if err != nil {
		return err
	}

	_, err = c.Catalog()
	return err
}

// Catalog builds the patch catalog described by the config.
func (c *Config) Catalog() (*catalog.Catalog, error) {
	return catalog.New(map[catalog.Group][]domain.Artifact{
		catalog.Core:         c.Patches.Core,
		catalog.Misc:         c.Patches.Misc,
		catalog.Reserved:     c.Patches.Reserved,
		catalog.Experimental: c.Patches.Experimental,
		catalog.AddOns:       c.AddOns,
	})
}

// defaultReplacement is the pre-patched executable shipped next to the
// launcher binary.
func defaultReplacement(name string) string {
	exe, err := os.Executable()
	if err != nil {
		return filepath.Join("extraResources", name)
	}
	return filepath.Join(filepath.Dir(exe), "extraResources", name)
}
