package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Provider ProviderConfig `yaml:"provider"`
	Replay   ReplayConfig   `yaml:"replay"`
	Record   RecordConfig   `yaml:"record"`
	Web      WebConfig      `yaml:"web"`
	MQTT     MQTTConfig     `yaml:"mqtt"`
	NMEA     NMEAConfig     `yaml:"nmea"`
	Track    TrackConfig    `yaml:"track"`
	Sim      SimConfig      `yaml:"sim"`
}

type ProviderConfig struct {
	Listen     string        `yaml:"listen"`
	ReadBuffer int           `yaml:"read_buffer"`
	Queue      int           `yaml:"queue"`
	StaleAfter time.Duration `yaml:"stale_after"`
}

type ReplayConfig struct {
	Enable bool    `yaml:"enable"`
	Path   string  `yaml:"path"`
	Speed  float64 `yaml:"speed"`
	Loop   bool    `yaml:"loop"`
}

type RecordConfig struct {
	Enable bool   `yaml:"enable"`
	Path   string `yaml:"path"`
}

type WebConfig struct {
	Enable bool   `yaml:"enable"`
	Listen string `yaml:"listen"`
}

type MQTTConfig struct {
	Enable      bool   `yaml:"enable"`
	Broker      string `yaml:"broker"`
	ClientID    string `yaml:"client_id"`
	TopicPrefix string `yaml:"topic_prefix"`
	QoS         int    `yaml:"qos"`
	Retain      bool   `yaml:"retain"`
	// QueueLen bounds notifications waiting for the broker; 0 uses the
	// publisher default.
	QueueLen int `yaml:"queue_len"`
}

type NMEAConfig struct {
	Enable bool   `yaml:"enable"`
	Dest   string `yaml:"dest"`
}

type TrackConfig struct {
	Enable bool   `yaml:"enable"`
	Path   string `yaml:"path"`
}

// SimConfig drives cmd/xplane-sim.
type SimConfig struct {
	Dest         string        `yaml:"dest"`
	Interval     time.Duration `yaml:"interval"`
	CenterLatDeg float64       `yaml:"center_lat_deg"`
	CenterLonDeg float64       `yaml:"center_lon_deg"`
	AltFeet      int           `yaml:"alt_feet"`
	GroundKt     int           `yaml:"ground_kt"`
	RadiusNm     float64       `yaml:"radius_nm"`
	Period       time.Duration `yaml:"period"`
}

func Load(path string) (Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}

	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.applyDefaults(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (cfg *Config) applyDefaults() error {
	if cfg.Provider.Listen == "" {
		cfg.Provider.Listen = "127.0.0.1:40000"
	}
	if cfg.Provider.ReadBuffer < 0 {
		return fmt.Errorf("provider.read_buffer must be >= 0")
	}
	if cfg.Provider.Queue < 0 {
		return fmt.Errorf("provider.queue must be >= 0")
	}
	if cfg.Provider.Queue == 0 {
		cfg.Provider.Queue = 64
	}
	if cfg.Provider.StaleAfter < 0 {
		return fmt.Errorf("provider.stale_after must be >= 0")
	}
	if cfg.Provider.StaleAfter == 0 {
		cfg.Provider.StaleAfter = 5 * time.Second
	}

	if cfg.Replay.Enable {
		if cfg.Replay.Path == "" {
			return fmt.Errorf("replay.path is required when replay.enable is true")
		}
		if cfg.Replay.Speed == 0 {
			cfg.Replay.Speed = 1
		}
		if cfg.Replay.Speed < 0 {
			return fmt.Errorf("replay.speed must be > 0")
		}
	}
	if cfg.Record.Enable && cfg.Record.Path == "" {
		return fmt.Errorf("record.path is required when record.enable is true")
	}
	if cfg.Record.Enable && cfg.Replay.Enable {
		return fmt.Errorf("record and replay cannot both be enabled")
	}

	if cfg.Web.Listen == "" {
		cfg.Web.Listen = ":8080"
	}

	if cfg.MQTT.Enable {
		if cfg.MQTT.Broker == "" {
			return fmt.Errorf("mqtt.broker is required when mqtt.enable is true")
		}
		if cfg.MQTT.QoS < 0 || cfg.MQTT.QoS > 2 {
			return fmt.Errorf("mqtt.qos must be 0, 1 or 2")
		}
	}
	if cfg.MQTT.TopicPrefix == "" {
		cfg.MQTT.TopicPrefix = "xplane"
	}

	if cfg.NMEA.Enable && cfg.NMEA.Dest == "" {
		return fmt.Errorf("nmea.dest is required when nmea.enable is true")
	}
	if cfg.Track.Enable && cfg.Track.Path == "" {
		return fmt.Errorf("track.path is required when track.enable is true")
	}

	// Simulator defaults (safe even if the simulator is never run).
	if cfg.Sim.Dest == "" {
		cfg.Sim.Dest = cfg.Provider.Listen
	}
	if cfg.Sim.Interval <= 0 {
		cfg.Sim.Interval = 200 * time.Millisecond
	}
	if cfg.Sim.Period <= 0 {
		cfg.Sim.Period = 120 * time.Second
	}
	if cfg.Sim.RadiusNm <= 0 {
		cfg.Sim.RadiusNm = 0.5
	}
	if cfg.Sim.GroundKt <= 0 {
		cfg.Sim.GroundKt = 90
	}
	if cfg.Sim.AltFeet == 0 {
		cfg.Sim.AltFeet = 3000
	}
	return nil
}
