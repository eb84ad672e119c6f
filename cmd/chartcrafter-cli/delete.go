package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"

	"github.com/chartcrafter/chartcrafter/clientcli"
)

var (
	deletePassword string
	deleteYes      bool
)

var deleteCmd = &cobra.Command{
	Use:     "delete <id> [id...]",
	Aliases: []string{"rm"},
	Short:   "Delete charts",
	Long: `Delete one or more charts.

With --password the deletion password returned at creation is sent;
otherwise the master key is used. A confirmation prompt is shown unless
--yes is given. Each argument is a chart id or a chart URL.

Examples:
  chartcrafter-cli delete 20240301-0b3c6a8e --password Xy7pQ2rT9mKb
  chartcrafter-cli delete id1 id2 id3 --yes
  chartcrafter-cli delete https://charts.example.com/chart/20240301-0b3c6a8e --yes`,
	Args: cobra.MinimumNArgs(1),
	RunE: runDelete,
}

func init() {
	deleteCmd.Flags().StringVar(&deletePassword, "password", "", "deletion password")
	deleteCmd.Flags().BoolVarP(&deleteYes, "yes", "y", false, "skip the confirmation prompt")
}

func runDelete(cmd *cobra.Command, args []string) error {
	if deletePassword != "" && len(args) > 1 {
		return errors.New("a deletion password belongs to a single chart; pass one id")
	}

	if !deleteYes {
		ok, err := confirm(fmt.Sprintf("Delete %d chart(s)", len(args)))
		if err != nil || !ok {
			return err
		}
	}

	client, err := getClient()
	if err != nil {
		return err
	}

	results, err := client.Delete(commandContext(cmd), clientcli.DeleteOptions{
		IDs:      args,
		Password: deletePassword,
	})
	if err != nil {
		return err
	}

	if err := getFormatter().FormatDelete(os.Stdout, results); err != nil {
		return err
	}

	// Return error if any deletes failed
	if clientcli.HasDeleteErrors(results) {
		return &exitError{code: 1}
	}

	return nil
}

// confirm asks a yes/no question. A "no" answer returns false without an
// error.
func confirm(label string) (bool, error) {
	prompt := promptui.Prompt{
		Label:     label,
		IsConfirm: true,
	}
	if _, err := prompt.Run(); err != nil {
		return false, handlePromptError(err)
	}
	return true, nil
}
