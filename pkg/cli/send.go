package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/telekom/autofix-notifier/pkg/api"
)

func NewSendCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "send",
		Short: "Send a single notification from a JSON request file",
	}
	cmd.AddCommand(newSendAutoFixCommand(), newSendCommonFixCommand())
	return cmd
}

func newSendAutoFixCommand() *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "autofix",
		Short: "Send an autofix notification (warning, fix, expiry reminder or exemption)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := getRuntime(cmd)
			if err != nil {
				return err
			}
			var body api.AutoFixRequest
			if err := readJSON(rt.reader, file, &body); err != nil {
				return err
			}
			req, err := body.ToNotification()
			if err != nil {
				return err
			}

			a, err := newApp(cmd.Context(), rt.cfg, rt.logger)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			if err := a.dispatcher.SendAutoFixNotification(cmd.Context(), req); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(rt.writer, "sent %s notification for %s\n", req.Action, req.ResourceID)
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "-", "Request JSON file, - for stdin")
	return cmd
}

func newSendCommonFixCommand() *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "common-fix",
		Short: "Send the batch digest for a set of applied fixes",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := getRuntime(cmd)
			if err != nil {
				return err
			}
			var body api.CommonFixRequest
			if err := readJSON(rt.reader, file, &body); err != nil {
				return err
			}
			if err := body.Validate(); err != nil {
				return err
			}

			a, err := newApp(cmd.Context(), rt.cfg, rt.logger)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			err = a.dispatcher.SendCommonFixNotification(cmd.Context(), body.Transactions, body.PolicyParams, body.Owner, body.TargetType)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(rt.writer, "sent common fix digest for %d resources\n", len(body.Transactions))
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "-", "Request JSON file, - for stdin")
	return cmd
}

func readJSON(stdin io.Reader, file string, out any) error {
	var r io.Reader = stdin
	if file != "" && file != "-" {
		f, err := os.Open(file)
		if err != nil {
			return fmt.Errorf("failed to open request file: %w", err)
		}
		defer func() { _ = f.Close() }()
		r = f
	}
	if err := json.NewDecoder(r).Decode(out); err != nil {
		return fmt.Errorf("failed to decode request: %w", err)
	}
	return nil
}
