package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/scholar-harvest/internal/harvest"
	"github.com/pdiddy/scholar-harvest/internal/mailbox"
)

var linksCmd = &cobra.Command{
	Use:   "links [files...]",
	Short: "Show the alert links found in messages without downloading",
	Long: `Links parses the given message files (or every message in the mailbox
directory when none are given) and prints each alert link with its resolved
publisher URL and DOI. Nothing is downloaded or written.`,
	RunE: runLinks,
}

func init() {
	linksCmd.Flags().String("mailbox-dir", defaultMailboxDir, "directory of exported alert messages")
	rootCmd.AddCommand(linksCmd)
}

func runLinks(cmd *cobra.Command, args []string) error {
	var msgs []mailbox.Message
	if len(args) == 0 {
		dir, _ := cmd.Flags().GetString("mailbox-dir")
		if !cmd.Flags().Changed("mailbox-dir") && viper.IsSet("mailbox.dir") {
			dir = viper.GetString("mailbox.dir")
		}
		var err error
		msgs, err = mailbox.DirReader{Dir: dir}.Messages(cmd.Context())
		if err != nil && len(msgs) == 0 {
			return err
		}
	} else {
		for _, path := range args {
			m, err := readMessageFile(path)
			if err != nil {
				return err
			}
			msgs = append(msgs, m)
		}
	}

	citations := harvest.New(nil, nil, nil).Discover(msgs, nil)

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "MESSAGE\tURL\tDOI\tERROR")
	for _, c := range citations {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", c.MessageID, dash(c.PublisherURL), dash(c.DOI), c.Failure)
	}
	w.Flush()

	fmt.Fprintf(cmd.OutOrStdout(), "\nTotal: %d links in %d messages\n", len(citations), len(msgs))
	return nil
}

func readMessageFile(path string) (mailbox.Message, error) {
	id := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	if strings.EqualFold(filepath.Ext(path), ".eml") {
		f, err := os.Open(path)
		if err != nil {
			return mailbox.Message{}, err
		}
		defer f.Close()
		return mailbox.ParseMessage(id, f)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return mailbox.Message{}, err
	}
	return mailbox.Message{ID: id, Body: string(data)}, nil
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
