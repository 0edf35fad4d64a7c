package main

import (
	"context"
	"fmt"
	"io"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sda-network/sda"
	"github.com/sda-network/sda/filestore"
)

var keygenCmd = &cobra.Command{
	Use:   "keygen",
	Short: "create an agent with a signed encryption key",
	Long: `keygen creates a signature key and an encryption key in the keystore
under --store, signs the encryption key and registers both in the directory`,
	Args: NoExtraArgs,
	PreRunE: func(cmd *cobra.Command, args []string) error {
		return settings.BindPFlags(cmd.Flags())
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		identity, err := createAgent(cmd.Context(),
			settings.GetString("store"),
			sda.SignatureKind(settings.GetString("signature")),
			sda.EncryptionKind(settings.GetString("encryption")),
			sda.NewZapAuditHandler(logger))
		if err != nil {
			logger.Error("keygen failed", zap.Error(err))
			return err
		}
		logger.Info("agent created",
			zap.String("agent", identity.Agent.String()),
			zap.String("verification_key", identity.VerificationKey.String()),
			zap.String("encryption_key", identity.EncryptionKey.String()))
		return identity.print(cmd.OutOrStdout())
	},
}

func init() {
	rootCmd.AddCommand(keygenCmd)
	keygenCmd.Flags().StringP("store", "s", "sda-store", "directory holding the keystore and agent directory")
	keygenCmd.Flags().String("signature", string(sda.SignatureEd25519), "signature kind")
	keygenCmd.Flags().String("encryption", string(sda.EncryptionX25519), "encryption kind")
}

// AgentIdentity lists the ids created by keygen
type AgentIdentity struct {
	Agent           sda.AgentID
	VerificationKey sda.VerificationKeyID
	EncryptionKey   sda.EncryptionKeyID
}

func (a *AgentIdentity) print(w io.Writer) error {
	_, err := fmt.Fprintf(w, "agent: %s\nverification_key: %s\nencryption_key: %s\n",
		a.Agent, a.VerificationKey, a.EncryptionKey)
	return err
}

func createAgent(ctx context.Context, root string, sigKind sda.SignatureKind, encKind sda.EncryptionKind, audit sda.AuditEventHandler) (*AgentIdentity, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	keystore, err := filestore.NewKeystore(filepath.Join(root, "keystore"))
	if err != nil {
		return nil, err
	}
	dir, err := filestore.NewDirectory(ctx, filepath.Join(root, "directory"), 0)
	if err != nil {
		return nil, err
	}
	defer dir.Close()

	module := sda.NewCryptoModule(keystore).WithAuditHandler(audit)
	vkID, err := module.NewSignatureKey(sigKind)
	if err != nil {
		return nil, err
	}
	vk, err := module.VerificationKey(vkID)
	if err != nil {
		return nil, err
	}
	agentID, err := sda.NewAgentID()
	if err != nil {
		return nil, err
	}
	if err := dir.CreateAgent(sda.Agent{ID: agentID, VerificationKey: vk}); err != nil {
		return nil, err
	}

	ekID, err := module.NewEncryptionKey(encKind)
	if err != nil {
		return nil, err
	}
	signed, err := module.SignEncryptionKey(agentID, vkID, ekID)
	if err != nil {
		return nil, err
	}
	if err := dir.CreateEncryptionKey(signed); err != nil {
		return nil, err
	}

	return &AgentIdentity{Agent: agentID, VerificationKey: vkID, EncryptionKey: ekID}, nil
}
