package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jmcleod/lectern/client"
)

var errAdminRequired = errors.New("admin role required")

type topicFilterFlags struct {
	page   int
	limit  int
	search string
	status string
}

func (f *topicFilterFlags) bind(c *cobra.Command, withStatus bool) {
	c.Flags().IntVar(&f.page, "page", 0, "Page number")
	c.Flags().IntVar(&f.limit, "limit", 0, "Page size")
	c.Flags().StringVar(&f.search, "search", "", "Filter by text")
	if withStatus {
		c.Flags().StringVar(&f.status, "status", "", "Filter by status (active, inactive)")
	}
}

func (f *topicFilterFlags) filter() client.TopicFilter {
	return client.TopicFilter{Page: f.page, Limit: f.limit, Search: f.search, Status: f.status}
}

type topicInputFlags struct {
	title       string
	slug        string
	description string
	status      string
}

func (f *topicInputFlags) bind(c *cobra.Command) {
	c.Flags().StringVar(&f.title, "title", "", "Topic title")
	c.Flags().StringVar(&f.slug, "slug", "", "URL slug")
	c.Flags().StringVar(&f.description, "description", "", "Description")
	c.Flags().StringVar(&f.status, "status", "", "Status (active, inactive)")
}

func (f *topicInputFlags) input() client.TopicInput {
	return client.TopicInput{Title: f.title, Slug: f.slug, Description: f.description, Status: f.status}
}

func newTopicsCmd(flags *globalFlags) *cobra.Command {
	topics := &cobra.Command{
		Use:   "topics",
		Short: "Browse and manage topics",
	}

	var list topicFilterFlags
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List active topics",
		Args:  cobra.NoArgs,
		RunE: withSession(flags, "/topics", func(cmd *cobra.Command, a *app, args []string) error {
			page, err := a.content.Topics(cmd.Context(), list.filter())
			if err != nil {
				return err
			}
			return printTopics(cmd.OutOrStdout(), page, false)
		}),
	}
	list.bind(listCmd, true)

	var counts topicFilterFlags
	countsCmd := &cobra.Command{
		Use:   "counts",
		Short: "List topics with their question counts",
		Args:  cobra.NoArgs,
		RunE: withSession(flags, "/topics/with-counts", func(cmd *cobra.Command, a *app, args []string) error {
			page, err := a.content.TopicsWithCounts(cmd.Context(), counts.filter())
			if err != nil {
				return err
			}
			return printTopics(cmd.OutOrStdout(), page, true)
		}),
	}
	counts.bind(countsCmd, false)

	showCmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show one topic",
		Args:  cobra.ExactArgs(1),
		RunE: withSession(flags, "/topics/{id}", func(cmd *cobra.Command, a *app, args []string) error {
			topic, err := a.content.Topic(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), topic)
		}),
	}

	var admin topicFilterFlags
	adminCmd := &cobra.Command{
		Use:   "admin",
		Short: "List topics of every status (admin)",
		Args:  cobra.NoArgs,
		RunE: withAdmin(flags, func(cmd *cobra.Command, a *app, args []string) error {
			page, err := a.content.AdminTopics(cmd.Context(), admin.filter())
			if err != nil {
				return err
			}
			return printTopics(cmd.OutOrStdout(), page, false)
		}),
	}
	admin.bind(adminCmd, true)

	var create topicInputFlags
	createCmd := &cobra.Command{
		Use:   "create",
		Short: "Create a topic (admin)",
		Args:  cobra.NoArgs,
		RunE: withAdmin(flags, func(cmd *cobra.Command, a *app, args []string) error {
			topic, err := a.content.CreateTopic(cmd.Context(), create.input())
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), topic)
		}),
	}
	create.bind(createCmd)

	var update topicInputFlags
	updateCmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Update a topic (admin)",
		Args:  cobra.ExactArgs(1),
		RunE: withAdmin(flags, func(cmd *cobra.Command, a *app, args []string) error {
			topic, err := a.content.UpdateTopic(cmd.Context(), args[0], update.input())
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), topic)
		}),
	}
	update.bind(updateCmd)

	deleteCmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a topic and its questions (admin)",
		Args:  cobra.ExactArgs(1),
		RunE: withAdmin(flags, func(cmd *cobra.Command, a *app, args []string) error {
			if err := a.content.DeleteTopic(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted topic %s\n", args[0])
			return nil
		}),
	}

	toggleCmd := &cobra.Command{
		Use:   "toggle <id>",
		Short: "Flip a topic between active and inactive (admin)",
		Args:  cobra.ExactArgs(1),
		RunE: withAdmin(flags, func(cmd *cobra.Command, a *app, args []string) error {
			topic, err := a.content.ToggleTopicStatus(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Topic %s is now %s\n", topic.ID, topic.Status)
			return nil
		}),
	}

	topics.AddCommand(listCmd, countsCmd, showCmd, adminCmd, createCmd, updateCmd, deleteCmd, toggleCmd)
	return topics
}

type sessionRunFunc func(cmd *cobra.Command, a *app, args []string) error

// withSession builds the app, restores the session and runs fn only when
// the guard lets path render.
func withSession(flags *globalFlags, path string, fn sessionRunFunc) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		a, err := newApp(flags, cmd.ErrOrStderr())
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.requireSession(cmd.Context(), path); err != nil {
			return err
		}
		return fn(cmd, a, args)
	}
}

// withAdmin is withSession for the admin topic routes, also checking the
// role locally.
func withAdmin(flags *globalFlags, fn sessionRunFunc) func(*cobra.Command, []string) error {
	return withSession(flags, "/admin/topics", func(cmd *cobra.Command, a *app, args []string) error {
		if !a.auth.User().IsAdmin() {
			return errAdminRequired
		}
		return fn(cmd, a, args)
	})
}
