package main

import (
	"context"
	"fmt"
	"math/rand/v2"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sda-network/sda"
)

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "run one aggregation round in memory",
	Long: `simulate registers a committee of clerks, masks every contributor's
secret to the committee, lets each clerk combine its fragments and finally
unmasks the aggregate`,
	Args: NoExtraArgs,
	PreRunE: func(cmd *cobra.Command, args []string) error {
		return settings.BindPFlags(cmd.Flags())
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadSimulationConfig(settings)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		result, err := runSimulation(cmd.Context(), cfg, sda.NewZapAuditHandler(logger))
		if err != nil {
			logger.Error("simulation failed", zap.Error(err))
			return err
		}
		logger.Info("aggregation complete",
			zap.String("scheme_id", result.SchemeID),
			zap.Int("contributors", result.Contributors),
			zap.Int("clerks", result.Clerks),
			zap.Int64("output", int64(result.Output)),
			zap.Int64("expected", int64(result.Expected)))
		fmt.Fprintln(cmd.OutOrStdout(), int64(result.Output))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(simulateCmd)
	simulateCmd.Flags().Int("contributors", 3, "number of contributors when no secrets are given")
	simulateCmd.Flags().IntSlice("secrets", nil, "contributor secrets, one per contributor")
	simulateCmd.Flags().String("signature", string(sda.SignatureEd25519), "signature kind for clerk keys")
}

// SimulationResult is the outcome of one aggregation round
type SimulationResult struct {
	SchemeID     string
	Contributors int
	Clerks       int
	Output       sda.Secret
	Expected     sda.Secret
}

type clerkAgent struct {
	agent  sda.Agent
	module *sda.CryptoModule
	key    sda.EncryptionKeyID
}

func registerClerk(dir sda.Directory, scheme *sda.Scheme, kind sda.SignatureKind, audit sda.AuditEventHandler) (*clerkAgent, error) {
	module := sda.NewCryptoModule(sda.NewMemoryKeystore()).WithAuditHandler(audit)

	vkID, err := module.NewSignatureKey(kind)
	if err != nil {
		return nil, err
	}
	vk, err := module.VerificationKey(vkID)
	if err != nil {
		return nil, err
	}
	id, err := sda.NewAgentID()
	if err != nil {
		return nil, err
	}
	agent := sda.Agent{ID: id, VerificationKey: vk}
	if err := dir.CreateAgent(agent); err != nil {
		return nil, err
	}

	ekID, err := module.NewEncryptionKey(scheme.Encryption)
	if err != nil {
		return nil, err
	}
	signed, err := module.SignEncryptionKey(id, vkID, ekID)
	if err != nil {
		return nil, err
	}
	if err := dir.CreateEncryptionKey(signed); err != nil {
		return nil, err
	}
	return &clerkAgent{agent: agent, module: module, key: ekID}, nil
}

func runSimulation(ctx context.Context, cfg *SimulationConfig, audit sda.AuditEventHandler) (*SimulationResult, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	scheme, err := cfg.Scheme.Scheme()
	if err != nil {
		return nil, err
	}
	ring := scheme.Ring()

	secrets := cfg.Secrets
	if len(secrets) == 0 {
		if cfg.Contributors < 1 {
			return nil, fmt.Errorf("need at least one contributor, got %d", cfg.Contributors)
		}
		secrets = make([]int64, cfg.Contributors)
		for i := range secrets {
			secrets[i] = rand.Int64N(ring.Modulus)
		}
	}

	dir := sda.NewMemoryDirectory()
	clerks := make(map[sda.AgentID]*clerkAgent, scheme.ShareCount)
	for range scheme.ShareCount {
		clerk, err := registerClerk(dir, scheme, sda.SignatureKind(cfg.Signature), audit)
		if err != nil {
			return nil, fmt.Errorf("register clerk: %w", err)
		}
		clerks[clerk.agent.ID] = clerk
	}

	candidates, err := dir.SuggestCommittee()
	if err != nil {
		return nil, err
	}
	committee, err := sda.ResolveCommittee(dir, scheme, candidates, scheme.ShareCount)
	if err != nil {
		return nil, err
	}

	inbox := make(map[sda.AgentID][]sda.EncryptedShare, len(committee))
	masked := make([]sda.MaskedSecret, 0, len(secrets))
	var expected int64
	for _, secret := range secrets {
		secret = ring.Reduce(secret)
		expected = ring.Add(expected, secret)

		contributor := sda.NewCryptoModule(sda.NewMemoryKeystore()).WithAuditHandler(audit)
		masker, err := contributor.NewSecretMasker(scheme, committee)
		if err != nil {
			return nil, err
		}
		value, fragments, err := masker.Mask(sda.Secret(secret))
		if err != nil {
			return nil, err
		}
		masked = append(masked, value)
		for _, fragment := range fragments {
			inbox[fragment.Recipient] = append(inbox[fragment.Recipient], fragment)
		}
	}

	aggregator := sda.NewCryptoModule(sda.NewMemoryKeystore()).WithAuditHandler(audit)
	combiner, err := aggregator.NewMaskCombiner(scheme)
	if err != nil {
		return nil, err
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, member := range committee {
		clerk := clerks[member.Agent.ID]
		fragments := inbox[member.Agent.ID]
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			engine, err := clerk.module.NewClerk(scheme, clerk.key)
			if err != nil {
				return err
			}
			share, err := engine.Combine(fragments)
			if err != nil {
				return fmt.Errorf("clerk %s: %w", clerk.agent.ID, err)
			}
			return combiner.Add(share)
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	mask, err := combiner.Combine()
	if err != nil {
		return nil, err
	}
	sum, err := sda.SumMaskedSecrets(scheme, masked)
	if err != nil {
		return nil, err
	}
	unmasker, err := aggregator.NewSecretUnmasker(scheme)
	if err != nil {
		return nil, err
	}

	return &SimulationResult{
		SchemeID:     scheme.ID(),
		Contributors: len(secrets),
		Clerks:       combiner.Len(),
		Output:       unmasker.Unmask(sum, mask),
		Expected:     sda.Secret(expected),
	}, nil
}
