package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jmcleod/lectern/client"
)

func newQuestionsCmd(flags *globalFlags) *cobra.Command {
	questions := &cobra.Command{
		Use:   "questions",
		Short: "Browse and ask questions",
	}

	var f client.QuestionFilter
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List questions",
		Args:  cobra.NoArgs,
		RunE: withSession(flags, "/questions", func(cmd *cobra.Command, a *app, args []string) error {
			page, err := a.content.Questions(cmd.Context(), f)
			if err != nil {
				return err
			}
			return printQuestions(cmd.OutOrStdout(), page)
		}),
	}
	listCmd.Flags().StringVar(&f.TopicID, "topic", "", "Only questions under this topic id")
	listCmd.Flags().IntVar(&f.Page, "page", 0, "Page number")
	listCmd.Flags().IntVar(&f.Limit, "limit", 0, "Page size")
	listCmd.Flags().StringVar(&f.Search, "search", "", "Filter by text")

	showCmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show a question with its answers",
		Args:  cobra.ExactArgs(1),
		RunE: withSession(flags, "/questions/{id}", func(cmd *cobra.Command, a *app, args []string) error {
			q, err := a.content.Question(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), q)
		}),
	}

	var in client.QuestionInput
	createCmd := &cobra.Command{
		Use:   "create",
		Short: "Ask a question",
		Args:  cobra.NoArgs,
		RunE: withSession(flags, "/questions", func(cmd *cobra.Command, a *app, args []string) error {
			q, err := a.content.CreateQuestion(cmd.Context(), in)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), q)
		}),
	}
	createCmd.Flags().StringVar(&in.TopicID, "topic", "", "Topic id")
	createCmd.Flags().StringVar(&in.Title, "title", "", "Question title")
	createCmd.Flags().StringVar(&in.Body, "body", "", "Question body")

	deleteCmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a question",
		Args:  cobra.ExactArgs(1),
		RunE: withSession(flags, "/questions/{id}", func(cmd *cobra.Command, a *app, args []string) error {
			if err := a.content.DeleteQuestion(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted question %s\n", args[0])
			return nil
		}),
	}

	questions.AddCommand(listCmd, showCmd, createCmd, deleteCmd)
	return questions
}

func newAnswersCmd(flags *globalFlags) *cobra.Command {
	answers := &cobra.Command{
		Use:   "answers",
		Short: "Answer questions",
	}

	var addBody string
	addCmd := &cobra.Command{
		Use:   "add <question-id>",
		Short: "Answer a question",
		Args:  cobra.ExactArgs(1),
		RunE: withSession(flags, "/questions/{id}/answers", func(cmd *cobra.Command, a *app, args []string) error {
			ans, err := a.content.AddAnswer(cmd.Context(), args[0], client.AnswerInput{Body: addBody})
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), ans)
		}),
	}
	addCmd.Flags().StringVar(&addBody, "body", "", "Answer text")

	var updateBody string
	updateCmd := &cobra.Command{
		Use:   "update <question-id> <answer-id>",
		Short: "Edit an answer",
		Args:  cobra.ExactArgs(2),
		RunE: withSession(flags, "/questions/{id}/answers/{answerID}", func(cmd *cobra.Command, a *app, args []string) error {
			ans, err := a.content.UpdateAnswer(cmd.Context(), args[0], args[1], client.AnswerInput{Body: updateBody})
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), ans)
		}),
	}
	updateCmd.Flags().StringVar(&updateBody, "body", "", "Answer text")

	deleteCmd := &cobra.Command{
		Use:   "delete <question-id> <answer-id>",
		Short: "Delete an answer",
		Args:  cobra.ExactArgs(2),
		RunE: withSession(flags, "/questions/{id}/answers/{answerID}", func(cmd *cobra.Command, a *app, args []string) error {
			if err := a.content.DeleteAnswer(cmd.Context(), args[0], args[1]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted answer %s\n", args[1])
			return nil
		}),
	}

	answers.AddCommand(addCmd, updateCmd, deleteCmd)
	return answers
}
