package utils

import (
	"errors"
	"fmt"
	"path/filepath"

	"code.cloudfoundry.org/bytefmt"
	"gopkg.in/yaml.v2"

	"github.com/jpmec/mongo-nonx86/utils/log"
)

// InstanceConfig is the journal subsystem configuration for this
// process, populated by Parse at startup.
var InstanceConfig JournalConfig

// DefaultInitBufferSize is the starting allocation for section
// assembly buffers when the configuration does not set one.
const DefaultInitBufferSize = 8 * 1024 * 1024

type JournalConfig struct {
	// JournalDir holds the j._<n> files and the lsn file.
	JournalDir string
	// LSNFilePath defaults to <JournalDir>/lsn.
	LSNFilePath string
	// InitBufferSize is the initial aligned-buffer allocation for
	// section assembly.
	InitBufferSize int
}

// Parse reads the YAML configuration. Sizes accept human-readable
// values ("8M", "128K").
func (c *JournalConfig) Parse(data []byte) error {
	var (
		err error
		aux struct {
			JournalDir     string `yaml:"journal_dir"`
			LSNFile        string `yaml:"lsn_file"`
			InitBufferSize string `yaml:"init_buffer_size"`
			LogLevel       string `yaml:"log_level"`
		}
	)

	if err = yaml.Unmarshal(data, &aux); err != nil {
		return fmt.Errorf("unmarshal config: %w", err)
	}

	if aux.JournalDir == "" {
		return errors.New("invalid configuration: journal_dir is required")
	}
	c.JournalDir = aux.JournalDir

	c.LSNFilePath = aux.LSNFile
	if c.LSNFilePath == "" {
		c.LSNFilePath = filepath.Join(c.JournalDir, "lsn")
	}

	c.InitBufferSize = DefaultInitBufferSize
	if aux.InitBufferSize != "" {
		n, err := bytefmt.ToBytes(aux.InitBufferSize)
		if err != nil {
			return fmt.Errorf("invalid init_buffer_size %q: %w", aux.InitBufferSize, err)
		}
		c.InitBufferSize = int(n)
	}

	if aux.LogLevel != "" {
		log.SetLevel(log.ParseLevel(aux.LogLevel))
	}

	return nil
}
