package rohc

import (
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"
)

// Config collects the tunable protocol parameters of a channel.  The RFC
// declares most of them implementation-defined; DefaultConfig supplies the
// values the engine was validated with.
type Config struct {
	MaxCID          int    `yaml:"max_cid"`
	LargeCID        bool   `yaml:"large_cid"`
	Mode            int    `yaml:"mode"` // ModeU, ModeO or ModeR
	Profiles        []int  `yaml:"profiles"`
	MRRU            int    `yaml:"mrru"` // 0 disables segmentation
	OptimismL       int    `yaml:"optimism_l"`
	IRTimeout       uint32 `yaml:"ir_timeout"` // packets between IR refreshes
	FOTimeout       uint32 `yaml:"fo_timeout"`
	WLSBWidth       int    `yaml:"wlsb_width"`
	RNDThreshold    int    `yaml:"rnd_threshold"`
	TSStrideObs     int    `yaml:"ts_stride_obs"`
	CRCFailuresK1   int    `yaml:"crc_failures_k1"`
	CRCWindowN1     int    `yaml:"crc_window_n1"`
	CRCFailuresK2   int    `yaml:"crc_failures_k2"`
	CRCWindowN2     int    `yaml:"crc_window_n2"`
	RepairTries     int    `yaml:"repair_tries"`
	RandomizeInitSN bool   `yaml:"randomize_init_sn"`
}

// DefaultConfig returns a small-CID U-mode configuration with all RFC 3095
// profiles enabled.
func DefaultConfig() *Config {
	return &Config{
		MaxCID:        ROHC_MAX_CID_SMALL,
		Mode:          ModeU,
		Profiles:      []int{ProfileUncompressed, ProfileRTP, ProfileUDP, ProfileESP, ProfileIP, ProfileTCP, ProfileUDPLite},
		OptimismL:     ROHC_OPTIMISM_L,
		IRTimeout:     ROHC_IR_TIMEOUT,
		FOTimeout:     ROHC_FO_TIMEOUT,
		WLSBWidth:     ROHC_WLSB_WIDTH,
		RNDThreshold:  ROHC_RND_THRESHOLD,
		TSStrideObs:   ROHC_TS_STRIDE_OBS,
		CRCFailuresK1: ROHC_CRC_K1,
		CRCWindowN1:   ROHC_CRC_N1,
		CRCFailuresK2: ROHC_CRC_K2,
		CRCWindowN2:   ROHC_CRC_N2,
		RepairTries:   ROHC_REPAIR_TRIES,
	}
}

// ReadConfig loads a Config from a yaml file; fields left unset fall back to
// their defaults.
func ReadConfig(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read config")
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return nil, errors.Wrap(err, "parse config")
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (cfg *Config) validate() error {
	maxCID := ROHC_MAX_CID_SMALL
	if cfg.LargeCID {
		maxCID = ROHC_MAX_CID_LARGE
	}
	if cfg.MaxCID < 0 || cfg.MaxCID > maxCID {
		return errors.Errorf("max_cid %d out of range [0,%d]", cfg.MaxCID, maxCID)
	}
	if !modeValid(byte(cfg.Mode)) {
		return errors.Errorf("invalid mode %d", cfg.Mode)
	}
	if cfg.OptimismL <= 0 || cfg.WLSBWidth <= 0 {
		return errors.New("optimism_l and wlsb_width must be positive")
	}
	if cfg.MRRU < 0 || cfg.MRRU > 0xffff {
		return errors.Errorf("mrru %d out of range", cfg.MRRU)
	}
	return nil
}

// CIDType reports the channel's CID space.
func (cfg *Config) CIDType() int {
	if cfg.LargeCID {
		return CIDTypeLarge
	}
	return CIDTypeSmall
}
