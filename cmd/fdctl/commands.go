package main

import (
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

// Response shapes mirror internal/http. They are redeclared here so the CLI
// only depends on the wire format.

type healthResponse struct {
	Status      string `json:"status"`
	PendingHelp int    `json:"pendingHelpRequests"`
}

type askResponse struct {
	Type       string  `json:"type"`
	Answer     string  `json:"answer,omitempty"`
	Confidence float64 `json:"confidence"`
	RequestID  string  `json:"requestId,omitempty"`
	Message    string  `json:"message,omitempty"`
}

type helpRequest struct {
	ID                 string    `json:"id"`
	Question           string    `json:"question"`
	CallerID           string    `json:"callerId"`
	Status             string    `json:"status"`
	SupervisorResponse string    `json:"supervisorResponse,omitempty"`
	CreatedAt          time.Time `json:"createdAt"`
	Deadline           time.Time `json:"deadline"`
}

type knowledgeItem struct {
	ID         string  `json:"id"`
	Question   string  `json:"question"`
	Answer     string  `json:"answer"`
	Category   string  `json:"category,omitempty"`
	Confidence float64 `json:"confidence"`
}

// emit prints raw when --json is set, otherwise calls human.
func (c *cli) emit(w io.Writer, raw []byte, human func()) {
	if c.jsonOutput {
		fmt.Fprintln(w, strings.TrimSpace(string(raw)))
		return
	}
	human()
}

func (c *cli) client() *client {
	return newClient(c.serverURL)
}

func (c *cli) healthCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check frontdesk server health",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var resp healthResponse
			raw, err := c.client().do(cmd.Context(), http.MethodGet, "/health", nil, &resp)
			if err != nil {
				return err
			}
			c.emit(cmd.OutOrStdout(), raw, func() {
				fmt.Fprintf(cmd.OutOrStdout(), "Server Status: %s\n", resp.Status)
				fmt.Fprintf(cmd.OutOrStdout(), "Pending Help Requests: %d\n", resp.PendingHelp)
				fmt.Fprintf(cmd.OutOrStdout(), "Server URL: %s\n", c.serverURL)
			})
			return nil
		},
	}
}

func (c *cli) askCmd() *cobra.Command {
	var caller, session string
	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Ask a question as a caller",
		Long: `Ask a question as a caller. Questions the desk cannot answer are
escalated and the help request id is printed.

Examples:
  fdctl ask --caller +15551234 "What are your hours?"`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			body := map[string]string{"question": args[0], "callerId": caller}
			if session != "" {
				body["sessionId"] = session
			}
			var resp askResponse
			raw, err := c.client().do(cmd.Context(), http.MethodPost, "/api/v1/questions", body, &resp)
			if err != nil {
				return err
			}
			c.emit(cmd.OutOrStdout(), raw, func() {
				if resp.Type == "escalated" {
					fmt.Fprintf(cmd.OutOrStdout(), "%s\nEscalated as help request %s\n", resp.Message, resp.RequestID)
					return
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s\n(confidence %.2f)\n", resp.Answer, resp.Confidence)
			})
			return nil
		},
	}
	cmd.Flags().StringVar(&caller, "caller", "", "caller id (required)")
	cmd.Flags().StringVar(&session, "session", "", "call session id")
	_ = cmd.MarkFlagRequired("caller")
	return cmd
}

func (c *cli) requestsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "requests",
		Aliases: []string{"req"},
		Short:   "List and answer help requests",
	}
	cmd.AddCommand(c.requestsListCmd(), c.requestsRespondCmd(), c.requestsUnresolveCmd())
	return cmd
}

func (c *cli) requestsListCmd() *cobra.Command {
	var status string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List help requests, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path := "/api/v1/help-requests"
			if status != "" {
				path += "?status=" + url.QueryEscape(status)
			}
			var reqs []helpRequest
			raw, err := c.client().do(cmd.Context(), http.MethodGet, path, nil, &reqs)
			if err != nil {
				return err
			}
			c.emit(cmd.OutOrStdout(), raw, func() {
				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "ID\tSTATUS\tCALLER\tDEADLINE\tQUESTION")
				for _, r := range reqs {
					fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", r.ID, r.Status, r.CallerID, r.Deadline.Local().Format(time.Kitchen), r.Question)
				}
				_ = tw.Flush()
			})
			return nil
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "filter by status (pending, resolved, unresolved)")
	return cmd
}

func (c *cli) requestsRespondCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "respond <id> <answer>",
		Short: "Answer a pending help request",
		Long: `Answer a pending help request. The answer is relayed to the caller and
added to the knowledge base.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var req helpRequest
			raw, err := c.client().do(cmd.Context(), http.MethodPost,
				"/api/v1/help-requests/"+url.PathEscape(args[0])+"/respond",
				map[string]string{"response": args[1]}, &req)
			if err != nil {
				return err
			}
			c.emit(cmd.OutOrStdout(), raw, func() {
				fmt.Fprintf(cmd.OutOrStdout(), "Help request %s %s\n", req.ID, req.Status)
			})
			return nil
		},
	}
}

func (c *cli) requestsUnresolveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "unresolve <id>",
		Short: "Close a pending help request without an answer",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var req helpRequest
			raw, err := c.client().do(cmd.Context(), http.MethodPost,
				"/api/v1/help-requests/"+url.PathEscape(args[0])+"/unresolved", nil, &req)
			if err != nil {
				return err
			}
			c.emit(cmd.OutOrStdout(), raw, func() {
				fmt.Fprintf(cmd.OutOrStdout(), "Help request %s %s\n", req.ID, req.Status)
			})
			return nil
		},
	}
}

func (c *cli) knowledgeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "knowledge",
		Aliases: []string{"kb"},
		Short:   "Manage the knowledge base",
	}
	cmd.AddCommand(c.knowledgeListCmd(), c.knowledgeAddCmd(), c.knowledgeDeleteCmd())
	return cmd
}

func (c *cli) knowledgeListCmd() *cobra.Command {
	var search string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List or search active knowledge items",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path := "/api/v1/knowledge"
			if search != "" {
				path += "?search=" + url.QueryEscape(search)
			}
			var items []knowledgeItem
			raw, err := c.client().do(cmd.Context(), http.MethodGet, path, nil, &items)
			if err != nil {
				return err
			}
			c.emit(cmd.OutOrStdout(), raw, func() {
				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "ID\tCONFIDENCE\tCATEGORY\tQUESTION")
				for _, it := range items {
					fmt.Fprintf(tw, "%s\t%.2f\t%s\t%s\n", it.ID, it.Confidence, it.Category, it.Question)
				}
				_ = tw.Flush()
			})
			return nil
		},
	}
	cmd.Flags().StringVar(&search, "search", "", "search text")
	return cmd
}

func (c *cli) knowledgeAddCmd() *cobra.Command {
	var category string
	cmd := &cobra.Command{
		Use:   "add <question> <answer>",
		Short: "Add or reinforce a knowledge item",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var item knowledgeItem
			raw, err := c.client().do(cmd.Context(), http.MethodPost, "/api/v1/knowledge",
				map[string]string{"question": args[0], "answer": args[1], "category": category}, &item)
			if err != nil {
				return err
			}
			c.emit(cmd.OutOrStdout(), raw, func() {
				fmt.Fprintf(cmd.OutOrStdout(), "Knowledge item %s (confidence %.2f)\n", item.ID, item.Confidence)
			})
			return nil
		},
	}
	cmd.Flags().StringVar(&category, "category", "", "item category")
	return cmd
}

func (c *cli) knowledgeDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Deactivate a knowledge item",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var resp struct {
				Deleted bool `json:"deleted"`
			}
			raw, err := c.client().do(cmd.Context(), http.MethodDelete,
				"/api/v1/knowledge/"+url.PathEscape(args[0]), nil, &resp)
			if err != nil {
				return err
			}
			c.emit(cmd.OutOrStdout(), raw, func() {
				if resp.Deleted {
					fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", args[0])
				} else {
					fmt.Fprintf(cmd.OutOrStdout(), "%s was already inactive\n", args[0])
				}
			})
			return nil
		},
	}
}
