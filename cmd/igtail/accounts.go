package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"igtail/pkg/accounts"
	"igtail/pkg/ui"
)

var accountsCmd = &cobra.Command{
	Use:   "accounts",
	Short: "Manage the host account pool",
	Long: `Manage the accounts used to authenticate requests.

The pool lives in the configured store:
  - json       plain account list file (default)
  - encrypted  AES-GCM encrypted file, key derived from IGTAIL_PASSPHRASE
  - keyring    system keychain entry
  - sqlite     SQLite database`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return loadConfig(map[string]interface{}{
			"accounts": accountsPath,
			"store":    storeKind,
		})
	},
}

var accountsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List accounts and their status",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		pool, closeStore, err := openAccountPool(cmd.Context())
		if err != nil {
			return err
		}
		defer closeStore()

		list := pool.List()
		if len(list) == 0 {
			ui.PrintWarning("No accounts stored", "use 'igtail accounts add <login>'")
			return nil
		}

		rows := make([]ui.AccountRow, 0, len(list))
		for _, acc := range list {
			rows = append(rows, ui.AccountRow{
				Login:       acc.Login,
				Status:      string(acc.Status),
				FailCount:   acc.FailCount,
				HasSession:  acc.HasSession(),
				LastChecked: acc.LastChecked,
			})
		}
		fmt.Println(ui.RenderAccounts(rows))

		stats := pool.Stats()
		statuses := make([]string, 0, len(stats))
		for status, n := range stats {
			statuses = append(statuses, fmt.Sprintf("%s=%d", status, n))
		}
		sort.Strings(statuses)
		ui.PrintInfo("Summary", strings.Join(statuses, " "))
		return nil
	},
}

var accountsAddCmd = &cobra.Command{
	Use:   "add <login>",
	Short: "Add or update an account",
	Long: `Add an account to the pool, or replace the stored password of an existing one.

The password is read from the terminal without echo. A stored session can be
supplied with --session-id and --token to skip the first login.`,
	Args: cobra.ExactArgs(1),
	RunE: runAccountsAdd,
}

var accountsSetStatusCmd = &cobra.Command{
	Use:   "set-status <login> <status>",
	Short: "Change the status of an account",
	Long: `Change the status of an account. Accounts are never returned to the working
state automatically; use this after resolving a challenge by hand.

Valid statuses: working, challenge, temp_blocked, banned, password_change,
checkpoint, unknown`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		status, err := accounts.ParseStatus(args[1])
		if err != nil {
			return err
		}

		pool, closeStore, err := openAccountPool(cmd.Context())
		if err != nil {
			return err
		}
		defer closeStore()

		acc, ok := pool.Find(args[0])
		if !ok {
			return fmt.Errorf("account %q not found", args[0])
		}
		if err := pool.SetStatus(cmd.Context(), acc, status); err != nil {
			return err
		}
		ui.PrintSuccess(fmt.Sprintf("Account %s is now %s", args[0], status))
		return nil
	},
}

var accountsImportCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Import accounts from a file",
	Long: `Import accounts from a JSON account list or a text file with one
login:password pair per line. Existing logins are replaced.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		imported, err := readAccountFile(args[0])
		if err != nil {
			return err
		}

		pool, closeStore, err := openAccountPool(cmd.Context())
		if err != nil {
			return err
		}
		defer closeStore()

		for _, acc := range imported {
			if err := pool.Add(cmd.Context(), acc); err != nil {
				return fmt.Errorf("import %s: %w", acc.Login, err)
			}
		}
		ui.PrintSuccess(fmt.Sprintf("Imported %d accounts", len(imported)))
		return nil
	},
}

var (
	addSessionID string
	addToken     string
)

func init() {
	rootCmd.AddCommand(accountsCmd)
	accountsCmd.AddCommand(accountsListCmd, accountsAddCmd, accountsSetStatusCmd, accountsImportCmd)

	accountsCmd.PersistentFlags().StringVar(&accountsPath, "accounts", "", "account store path")
	accountsCmd.PersistentFlags().StringVar(&storeKind, "store", "", "account store backend (json, encrypted, keyring, sqlite)")

	accountsAddCmd.Flags().StringVar(&addSessionID, "session-id", "", "stored sessionid cookie")
	accountsAddCmd.Flags().StringVar(&addToken, "token", "", "stored csrftoken cookie")
}

func runAccountsAdd(cmd *cobra.Command, args []string) error {
	login := strings.TrimSpace(args[0])

	fmt.Printf("Password for %s: ", login)
	password, err := readPassword()
	if err != nil {
		return fmt.Errorf("failed to read password: %w", err)
	}
	if password == "" {
		return fmt.Errorf("password is required")
	}

	pool, closeStore, err := openAccountPool(cmd.Context())
	if err != nil {
		return err
	}
	defer closeStore()

	acc := accounts.Account{
		Login:     login,
		Password:  password,
		SessionID: addSessionID,
		Token:     addToken,
		Status:    accounts.StatusWorking,
	}
	if existing, ok := pool.Find(login); ok {
		view := pool.View(existing)
		acc.ID = view.ID
		acc.Headers = view.Headers
		if acc.SessionID == "" {
			acc.SessionID, acc.Token = view.SessionID, view.Token
		}
	}

	if err := pool.Add(cmd.Context(), acc); err != nil {
		return err
	}
	ui.PrintSuccess("Account saved: " + login)
	return nil
}

// readAccountFile accepts the JSON account list format or login:password lines.
func readAccountFile(path string) ([]accounts.Account, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	trimmed := strings.TrimSpace(string(data))
	if strings.HasPrefix(trimmed, "[") {
		var list []accounts.Account
		if err := json.Unmarshal(data, &list); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
		return list, nil
	}

	var list []accounts.Account
	scanner := bufio.NewScanner(strings.NewReader(trimmed))
	for line := 1; scanner.Scan(); line++ {
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		login, password, ok := strings.Cut(text, ":")
		if !ok || login == "" || password == "" {
			return nil, fmt.Errorf("%s:%d: expected login:password", path, line)
		}
		list = append(list, accounts.Account{Login: login, Password: password, Status: accounts.StatusWorking})
	}
	return list, scanner.Err()
}

// readPassword reads a password from stdin without echoing
func readPassword() (string, error) {
	if term.IsTerminal(int(syscall.Stdin)) {
		password, err := term.ReadPassword(int(syscall.Stdin))
		fmt.Println()
		if err == nil {
			return string(password), nil
		}
	}

	reader := bufio.NewReader(os.Stdin)
	input, err := reader.ReadString('\n')
	if err != nil && input == "" {
		return "", err
	}
	return strings.TrimSpace(input), nil
}
