package main

import (
	"encoding/json"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/ikkim/gigmarket-backend/internal/app/service"
	"github.com/spf13/cobra"
)

func queueCmd(env *cliEnv) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "queue",
		Short: "List sessions awaiting review",
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := env.reviewService().ListReviewQueue(cmd.Context(), queueFilter(cmd))
			if err != nil {
				return err
			}

			asJSON, _ := cmd.Flags().GetBool("json")
			if asJSON {
				enc := json.NewEncoder(env.out)
				enc.SetIndent("", "  ")
				return enc.Encode(result)
			}
			return printQueue(env, result)
		},
	}

	addQueueFlags(cmd)
	cmd.Flags().BoolP("json", "j", false, "Output as JSON")

	return cmd
}

func printQueue(env *cliEnv, result *service.ReviewQueueResult) error {
	w := tabwriter.NewWriter(env.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "SESSION\tUSER\tSTATUS\tDOCUMENTS\tUPDATED\tFLAGS")
	for _, item := range result.Items {
		email := item.Session.UserID
		if item.User != nil {
			email = item.User.Email
		}
		flags := make([]string, 0, len(item.Flags))
		for _, f := range item.Flags {
			flags = append(flags, string(f))
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\t%s\n",
			item.Session.ID,
			email,
			item.Session.Status,
			len(item.Documents),
			item.Session.UpdatedAt.Format("2006-01-02 15:04"),
			strings.Join(flags, ","),
		)
	}
	fmt.Fprintf(w, "\n%d session(s)\n", result.Count)
	return w.Flush()
}
