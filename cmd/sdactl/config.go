package main

import (
	"github.com/spf13/viper"

	"github.com/sda-network/sda"
)

// mersenne prime 2^31 - 1
const defaultModulus int64 = 2147483647

// SchemeConfig is the on-disk and environment form of sda.Scheme
type SchemeConfig struct {
	Sharing    string `mapstructure:"sharing"`
	Modulus    int64  `mapstructure:"modulus"`
	Threshold  int    `mapstructure:"threshold"`
	ShareCount int    `mapstructure:"share_count"`
	Encryption string `mapstructure:"encryption"`
}

// Scheme converts the config and validates the result
func (c SchemeConfig) Scheme() (*sda.Scheme, error) {
	scheme := &sda.Scheme{
		Sharing:    sda.SharingKind(c.Sharing),
		Modulus:    c.Modulus,
		Threshold:  c.Threshold,
		ShareCount: c.ShareCount,
		Encryption: sda.EncryptionKind(c.Encryption),
	}
	if err := scheme.Validate(); err != nil {
		return nil, err
	}
	return scheme, nil
}

// SimulationConfig drives the simulate command
type SimulationConfig struct {
	Scheme       SchemeConfig `mapstructure:"scheme"`
	Signature    string       `mapstructure:"signature"`
	Contributors int          `mapstructure:"contributors"`
	Secrets      []int64      `mapstructure:"secrets"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("scheme.sharing", string(sda.SharingShamir))
	v.SetDefault("scheme.modulus", defaultModulus)
	v.SetDefault("scheme.threshold", 3)
	v.SetDefault("scheme.share_count", 5)
	v.SetDefault("scheme.encryption", string(sda.EncryptionX25519))
	v.SetDefault("signature", string(sda.SignatureEd25519))
	v.SetDefault("contributors", 3)
}

func loadSimulationConfig(v *viper.Viper) (*SimulationConfig, error) {
	cfg := &SimulationConfig{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
