package config

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/dooshek/ttsclient/internal/fileops"
	"github.com/dooshek/ttsclient/internal/logger"
	"github.com/dooshek/ttsclient/internal/types"
	"github.com/fatih/color"
)

// RunWizard asks for the backend and its endpoint on the terminal and saves the answers
func RunWizard() error {
	fileOps, err := fileops.NewDefaultFileOps()
	if err != nil {
		return fmt.Errorf("failed to initialize file operations: %w", err)
	}
	return runWizard(os.Stdin, os.Stdout, fileOps)
}

func runWizard(in io.Reader, out io.Writer, fileOps fileops.FileOps) error {
	bold := color.New(color.Bold)
	cyan := color.New(color.FgCyan)
	green := color.New(color.FgGreen)
	yellow := color.New(color.FgYellow)

	bold.Fprintln(out, "\nWelcome to the TTS client configuration wizard!")
	fmt.Fprintln(out, "\nThis wizard will help you choose a TTS backend.")

	reader := bufio.NewReader(in)
	config := &types.Config{}

	for {
		cyan.Fprintln(out, "\nWhich backend should be used?")
		for i, backend := range types.KnownBackends {
			fmt.Fprintf(out, "  %d) %s\n", i+1, backend)
		}
		answer, err := prompt(reader, out, "Backend", string(types.BackendJSONRPC))
		if err != nil {
			return err
		}

		backend, ok := parseBackend(answer)
		if !ok {
			yellow.Fprintf(out, "Unknown backend %q, let's try again.\n", answer)
			continue
		}
		config.Backend = string(backend)

		switch backend {
		case types.BackendCOMRPC:
			config.COMRPC.CommunicatorPath, err = prompt(reader, out, "Communicator socket", config.GetCOMRPCConfig().CommunicatorPath)
		case types.BackendJSONRPC:
			config.JSONRPC.Endpoint, err = prompt(reader, out, "Thunder access (host:port)", config.GetJSONRPCConfig().Endpoint)
		case types.BackendFirebolt:
			config.Firebolt.Endpoint, err = prompt(reader, out, "Firebolt endpoint", "nats://127.0.0.1:4222")
		}
		if err != nil {
			return err
		}

		config.ClientIdentifier, err = prompt(reader, out, "Client identifier", "ttsctl")
		if err != nil {
			return err
		}

		yellow.Fprint(out, "\nSelected backend is: ")
		fmt.Fprintln(out, config.Backend)

		answer, err = prompt(reader, out, "Do you want to use this backend? [Y/n]", "y")
		if err != nil {
			return err
		}
		answer = strings.ToLower(answer)
		if answer != "y" && answer != "yes" {
			fmt.Fprintln(out, "\nOK, let's try again.")
			config = &types.Config{}
			continue
		}
		break
	}

	if err := Save(fileOps, config); err != nil {
		logger.Error("Failed to save config", err)
		return err
	}

	green.Fprintln(out, "\nConfiguration saved successfully!")
	return nil
}

// prompt prints question and returns the trimmed answer, or def when it is empty
func prompt(reader *bufio.Reader, out io.Writer, question, def string) (string, error) {
	fmt.Fprintf(out, "%s [%s]: ", question, def)
	response, err := reader.ReadString('\n')
	if err != nil && (err != io.EOF || response == "") {
		logger.Error("Failed to read input", err)
		return "", err
	}

	response = strings.Map(func(r rune) rune {
		if r < 32 || r == 127 {
			return -1
		}
		return r
	}, strings.TrimSpace(response))
	if response == "" {
		return def, nil
	}
	return response, nil
}

// parseBackend accepts a menu number or a backend name
func parseBackend(answer string) (types.Backend, bool) {
	for i, backend := range types.KnownBackends {
		if answer == fmt.Sprint(i+1) || strings.EqualFold(answer, string(backend)) {
			return backend, true
		}
	}
	return "", false
}
