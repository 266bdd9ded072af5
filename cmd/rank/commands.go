package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"llmpagerank/internal/types"
)

var (
	// submit flags
	submitType     string
	submitContent  string
	submitCategory string
	submitDomain   string
	submitBrands   []string
	submitQuality  float64
	submitClick    float64
	submitRet      float64
	submitShare    float64

	// engage flags
	engageClick   float64
	engageRet     float64
	engageShare   float64
	engageRequery float64

	// enforce flags
	enforceForce bool
)

func printJSON(v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}

var statusCmd = &cobra.Command{
	Use:   "status [agent]",
	Short: "Show pool status, or one agent's full status",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 0 {
			fmt.Println(eng.Directive.Banner())
			return printJSON(map[string]interface{}{
				"pool":       eng.Economy.GetPoolStatus(),
				"engagement": eng.Feedback.SystemSummary(),
			})
		}
		name := args[0]
		status, err := eng.Directive.GetContractStatus(name)
		if err != nil {
			return err
		}
		out := map[string]interface{}{
			"contract":       status,
			"cookie_balance": eng.Economy.AgentBalance(name),
		}
		if sstatus, ok := eng.Survival.AgentStatus(name); ok {
			out["survival"] = sstatus
		}
		if perf, ok := eng.Economy.GetPerformance(name); ok {
			out["performance"] = perf
		}
		if summary, ok := eng.Feedback.AgentSummary(name); ok {
			out["engagement"] = summary
		}
		return printJSON(out)
	},
}

var leaderboardCmd = &cobra.Command{
	Use:   "leaderboard",
	Short: "Show this cycle's cookie leaderboard and insight trends",
	RunE: func(cmd *cobra.Command, args []string) error {
		return printJSON(map[string]interface{}{
			"leaderboard": eng.Economy.Leaderboard(),
			"trends":      eng.Economy.InsightTrends(),
		})
	},
}

var registerCmd = &cobra.Command{
	Use:   "register <agent> <domain> <insight-type>",
	Short: "Register an agent under the directive contract",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		c := eng.RegisterAgent(args[0], args[1], types.InsightType(args[2]))
		logger.Info("agent registered",
			zap.String("agent", c.AgentName),
			zap.String("domain", c.Domain))
		return printJSON(c)
	},
}

var submitCmd = &cobra.Command{
	Use:   "submit <agent>",
	Short: "Submit an insight for scoring, payout, and fate decision",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		insight := types.InsightData{
			Type:         types.InsightType(submitType),
			Content:      submitContent,
			Category:     submitCategory,
			Domain:       submitDomain,
			Brands:       submitBrands,
			QualityScore: submitQuality,
		}
		var engagement *types.EngagementSnapshot
		if submitClick > 0 || submitRet > 0 || submitShare > 0 {
			engagement = &types.EngagementSnapshot{
				ClickRate:     submitClick,
				RetentionTime: submitRet,
				ShareRate:     submitShare,
			}
		}
		result, err := eng.Submit(args[0], insight, engagement)
		if err != nil {
			return err
		}
		return printJSON(result)
	},
}

var engageCmd = &cobra.Command{
	Use:   "engage <insight-id>",
	Short: "Record post-hoc engagement telemetry for an insight",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		entry, err := eng.RecordEngagement(args[0], types.EngagementSnapshot{
			ClickRate:     engageClick,
			RetentionTime: engageRet,
			ShareRate:     engageShare,
			RequeryRate:   engageRequery,
		})
		if err != nil {
			return err
		}
		return printJSON(entry)
	},
}

var survivalCmd = &cobra.Command{
	Use:   "survival",
	Short: "Run a survival sweep over the population",
	RunE: func(cmd *cobra.Command, args []string) error {
		entry := eng.Survival.RunEvaluation()
		if entry == nil {
			fmt.Println("survival evaluation still within cadence window")
			return nil
		}
		return printJSON(entry)
	},
}

var enforceCmd = &cobra.Command{
	Use:   "enforce",
	Short: "Run a quality enforcement pass",
	RunE: func(cmd *cobra.Command, args []string) error {
		return printJSON(eng.Enforce(enforceForce))
	},
}

var loopCmd = &cobra.Command{
	Use:   "loop",
	Short: "Run the periodic rollover, sweep, and enforcement loops",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		logger.Info("enforcement loops running, ctrl-c to stop")
		if err := eng.Run(ctx); err != nil && err != context.Canceled {
			return err
		}
		return nil
	},
}

func init() {
	submitCmd.Flags().StringVar(&submitType, "type", string(types.InsightNewCitation), "insight type")
	submitCmd.Flags().StringVar(&submitContent, "content", "", "insight content")
	submitCmd.Flags().StringVar(&submitCategory, "category", "", "insight category")
	submitCmd.Flags().StringVar(&submitDomain, "domain", "", "insight domain")
	submitCmd.Flags().StringSliceVar(&submitBrands, "brands", nil, "brands mentioned")
	submitCmd.Flags().Float64Var(&submitQuality, "quality", 0, "quality score [0,1]")
	submitCmd.Flags().Float64Var(&submitClick, "click-rate", 0, "engagement click rate")
	submitCmd.Flags().Float64Var(&submitRet, "retention", 0, "engagement retention seconds")
	submitCmd.Flags().Float64Var(&submitShare, "share-rate", 0, "engagement share rate")

	engageCmd.Flags().Float64Var(&engageClick, "click-rate", 0, "click rate")
	engageCmd.Flags().Float64Var(&engageRet, "retention", 0, "retention seconds")
	engageCmd.Flags().Float64Var(&engageShare, "share-rate", 0, "share rate")
	engageCmd.Flags().Float64Var(&engageRequery, "requery-rate", 0, "requery rate")

	enforceCmd.Flags().BoolVar(&enforceForce, "force", false, "ignore the cadence window")
}
