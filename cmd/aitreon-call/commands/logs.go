package commands

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/danieledinun/aitreon-sub001/pkg/calllog"
	"github.com/danieledinun/aitreon-sub001/pkg/cli"
)

var logsCmd = &cobra.Command{
	Use:   "logs",
	Short: "List journaled calls",
	RunE:  runLogsList,
}

var logsShowCmd = &cobra.Command{
	Use:   "show <session-id>",
	Short: "Replay a journaled call transcript",
	Args:  cobra.ExactArgs(1),
	RunE:  runLogsShow,
}

func init() {
	logsCmd.AddCommand(logsShowCmd)
	rootCmd.AddCommand(logsCmd)
}

func openJournal() (*calllog.Journal, error) {
	cfg, err := GetConfig()
	if err != nil {
		return nil, err
	}
	return calllog.Open(calllog.Options{Dir: filepath.Join(cfg.DataDir(), "calllog")})
}

func runLogsList(cmd *cobra.Command, args []string) error {
	journal, err := openJournal()
	if err != nil {
		return err
	}
	defer journal.Close()

	styles := cli.NewStyles(cli.DefaultTheme)
	count := 0
	for rec, err := range journal.Calls(cmd.Context()) {
		if err != nil {
			return err
		}
		count++
		duration := "ongoing"
		reason := ""
		if !rec.EndedAt.IsZero() {
			duration = cli.FormatClock(rec.EndedAt.Sub(rec.StartedAt))
			reason = rec.EndReason
		}
		fmt.Printf("%s  %s  %s  %s %s\n",
			styles.Help.Render(rec.StartedAt.Format("2006-01-02 15:04")),
			styles.Label.Render(rec.CreatorID),
			duration,
			rec.SessionID,
			styles.Help.Render(reason))
	}
	if count == 0 {
		fmt.Println(styles.Help.Render("no journaled calls"))
	}
	return nil
}

func runLogsShow(cmd *cobra.Command, args []string) error {
	journal, err := openJournal()
	if err != nil {
		return err
	}
	defer journal.Close()

	sessionID := args[0]
	rec, err := journal.Call(cmd.Context(), sessionID)
	if err != nil {
		return err
	}

	styles := cli.NewStyles(cli.DefaultTheme)
	header := fmt.Sprintf("%s with %s, started %s",
		rec.SessionID, rec.CreatorID, rec.StartedAt.Format("2006-01-02 15:04:05"))
	if !rec.EndedAt.IsZero() {
		header += fmt.Sprintf(", %s (%s)",
			cli.FormatClock(rec.EndedAt.Sub(rec.StartedAt)), rec.EndReason)
	}
	fmt.Println(styles.Title.Render(header))

	entries, err := journal.Transcript(cmd.Context(), sessionID)
	if err != nil {
		return err
	}
	for _, e := range entries {
		speaker := styles.User
		if e.Speaker != rec.UserID {
			speaker = styles.Agent
		}
		fmt.Printf("%s %s %s\n",
			styles.Help.Render(e.Timestamp.Format("15:04:05")),
			speaker.Render(e.Speaker+":"),
			e.Text)
	}
	if len(entries) == 0 {
		fmt.Println(styles.Help.Render("no transcript recorded"))
	}
	return nil
}
