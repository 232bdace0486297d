package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

// outputResult writes a CLIResult to stdout in the selected format. text
// renders the results with the formatter registered for the command.
func outputResult(cmd *cobra.Command, result CLIResult) error {
	if flagFormat == "text" {
		return outputResultText(cmd, result)
	}
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

// outputError writes an error in the selected format and returns it so RunE
// can propagate it to Cobra. In JSON mode the error is written to stdout as a
// CLIResult envelope. In text mode it goes to stderr.
func outputError(cmd *cobra.Command, err error) error {
	errorHandled = true
	if flagFormat == "text" {
		fmt.Fprintf(cmd.ErrOrStderr(), "Error: %s\n", err)
		return err
	}
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	_ = enc.Encode(CLIResult{Command: cmd.Name(), Error: err.Error()})
	return err
}
