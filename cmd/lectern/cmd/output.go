package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/jmcleod/lectern/client"
)

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printTopics(w io.Writer, page *client.Page[client.Topic], counts bool) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	if counts {
		fmt.Fprintln(tw, "ID\tTITLE\tSTATUS\tQUESTIONS")
	} else {
		fmt.Fprintln(tw, "ID\tTITLE\tSTATUS")
	}
	for _, t := range page.Items {
		if counts {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%d\n", t.ID, t.Title, t.Status, t.QuestionCount)
		} else {
			fmt.Fprintf(tw, "%s\t%s\t%s\n", t.ID, t.Title, t.Status)
		}
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	printPagination(w, page.Pagination)
	return nil
}

func printQuestions(w io.Writer, page *client.Page[client.Question]) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTOPIC\tTITLE\tANSWERS")
	for _, q := range page.Items {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\n", q.ID, q.TopicID, q.Title, q.AnswerCount)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	printPagination(w, page.Pagination)
	return nil
}

func printPagination(w io.Writer, p *client.Pagination) {
	if p == nil || p.TotalPages <= 1 {
		return
	}
	fmt.Fprintf(w, "page %d of %d (%d total)\n", p.Page, p.TotalPages, p.Total)
}
