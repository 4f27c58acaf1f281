package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/telekom/autofix-notifier/pkg/api"
	"github.com/telekom/autofix-notifier/pkg/autofix"
	"github.com/telekom/autofix-notifier/pkg/mail"
	"github.com/telekom/autofix-notifier/pkg/notification"
)

func NewRenderCommand() *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "render",
		Short: "Render the common fix digest for a request without sending it",
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
			params := body.PolicyParams
			if params.TargetType() == "" && body.TargetType != "" {
				params[autofix.ParamTargetType] = body.TargetType
			}

			props := rt.cfg.PropertyStore()
			d := notification.NewDispatcher(props, props, mail.NewTemplateStore(rt.cfg.Mail.TemplateDir), nil, rt.logger.Sugar())
			out, err := d.FormatCommonFixBody(body.Transactions, params, body.Owner)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(rt.writer, out)
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "-", "Common fix request JSON file, - for stdin")
	return cmd
}
