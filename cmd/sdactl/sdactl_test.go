package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"

	"github.com/sda-network/sda"
	"github.com/sda-network/sda/filestore"
)

func defaultConfig(t *testing.T) *SimulationConfig {
	t.Helper()
	v := viper.New()
	setDefaults(v)
	cfg, err := loadSimulationConfig(v)
	require.NoError(t, err)
	return cfg
}

func TestDefaultConfig(t *testing.T) {
	cfg := defaultConfig(t)
	require.Equal(t, 3, cfg.Contributors)
	require.Equal(t, "ed25519", cfg.Signature)

	scheme, err := cfg.Scheme.Scheme()
	require.NoError(t, err)
	require.Equal(t, sda.NewShamirScheme(defaultModulus, 3, 5), scheme)

	cfg.Scheme.Threshold = 6
	_, err = cfg.Scheme.Scheme()
	require.ErrorIs(t, err, sda.ErrInvalidThreshold)
}

func TestRunSimulation(t *testing.T) {
	cases := map[string]func(cfg *SimulationConfig){
		"shamir": func(cfg *SimulationConfig) {},
		"additive": func(cfg *SimulationConfig) {
			cfg.Scheme.Sharing = string(sda.SharingAdditive)
			cfg.Scheme.Threshold = 4
			cfg.Scheme.ShareCount = 4
		},
		"secp256k1": func(cfg *SimulationConfig) {
			cfg.Scheme.Encryption = string(sda.EncryptionSecp256k1)
			cfg.Signature = string(sda.SignatureSecp256k1Schnorr)
		},
	}

	for name, tweak := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := defaultConfig(t)
			cfg.Secrets = []int64{10, 20, 30, -5}
			tweak(cfg)

			result, err := runSimulation(context.Background(), cfg, &sda.NullAuditHandler{})
			require.NoError(t, err)
			require.Equal(t, sda.Secret(55), result.Output)
			require.Equal(t, result.Expected, result.Output)
			require.Equal(t, 4, result.Contributors)
			require.Equal(t, cfg.Scheme.ShareCount, result.Clerks)
		})
	}

	t.Run("RandomSecrets", func(t *testing.T) {
		cfg := defaultConfig(t)
		result, err := runSimulation(context.Background(), cfg, &sda.NullAuditHandler{})
		require.NoError(t, err)
		require.Equal(t, 3, result.Contributors)
		require.Equal(t, result.Expected, result.Output)
	})

	t.Run("Canceled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := runSimulation(ctx, defaultConfig(t), &sda.NullAuditHandler{})
		require.ErrorIs(t, err, context.Canceled)
	})

	t.Run("InvalidScheme", func(t *testing.T) {
		cfg := defaultConfig(t)
		cfg.Scheme.Modulus = 100
		_, err := runSimulation(context.Background(), cfg, &sda.NullAuditHandler{})
		require.ErrorIs(t, err, sda.ErrInvalidScheme)
	})

	t.Run("NoContributors", func(t *testing.T) {
		cfg := defaultConfig(t)
		cfg.Contributors = 0
		_, err := runSimulation(context.Background(), cfg, &sda.NullAuditHandler{})
		require.Error(t, err)
	})
}

func TestCreateAgent(t *testing.T) {
	root := t.TempDir()
	identity, err := createAgent(context.Background(), root, sda.SignatureEd25519, sda.EncryptionX25519, &sda.NullAuditHandler{})
	require.NoError(t, err)

	keystore, err := filestore.NewKeystore(filepath.Join(root, "keystore"))
	require.NoError(t, err)
	_, ok, err := keystore.GetEncryptionKeypair(identity.EncryptionKey)
	require.NoError(t, err)
	require.True(t, ok)

	dir, err := filestore.NewDirectory(context.Background(), filepath.Join(root, "directory"), 0)
	require.NoError(t, err)
	defer dir.Close()
	agent, ok, err := dir.GetAgent(identity.Agent)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, identity.VerificationKey, agent.VerificationKey.ID)

	signed, ok, err := dir.GetEncryptionKey(identity.EncryptionKey)
	require.NoError(t, err)
	require.True(t, ok)
	require.True(t, sda.VerifySignedEncryptionKey(agent, signed))

	var out bytes.Buffer
	require.NoError(t, identity.print(&out))
	require.Contains(t, out.String(), "agent: "+identity.Agent.String())

	entries, err := os.ReadDir(filepath.Join(root, "keystore", "signature_keys"))
	require.NoError(t, err)
	require.Len(t, entries, 1)

	_, err = createAgent(context.Background(), root, "dsa", sda.EncryptionX25519, &sda.NullAuditHandler{})
	require.ErrorIs(t, err, sda.ErrUnsupportedKind)
}

func TestSimulateCommand(t *testing.T) {
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"simulate", "--secrets", "1,2,3"})
	t.Cleanup(func() { rootCmd.SetArgs(nil) })

	require.NoError(t, rootCmd.Execute())
	require.Equal(t, "6", strings.TrimSpace(out.String()))
}

func TestNoExtraArgs(t *testing.T) {
	require.NoError(t, NoExtraArgs(rootCmd, nil))
	require.Error(t, NoExtraArgs(rootCmd, []string{"extra"}))
}
