package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/MrEthical07/wanderauth/docstore"
	"github.com/MrEthical07/wanderauth/idp"
	"github.com/MrEthical07/wanderauth/profile"
)

var adminCmd = &cobra.Command{
	Use:   "admin",
	Short: "Administrator sign-in and role management",
}

var adminSignInCmd = &cobra.Command{
	Use:   "signin <identifier>",
	Short: "Sign in as an administrator and remember the session on this device",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		pw, err := promptPassword(os.Stderr)
		if err != nil {
			return err
		}
		if err := app.engine.AdminSignIn(cmd.Context(), args[0], pw); err != nil {
			return err
		}
		printSuccess("Admin session saved")
		return nil
	},
}

var adminGrantCmd = &cobra.Command{
	Use:   "grant <email>",
	Short: "Give an existing account the admin role",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		acct, err := lookupAccount(ctx, args[0])
		if err != nil {
			return err
		}

		profiles := profileStore()
		rec, found, err := profiles.Get(ctx, acct.ID)
		if err != nil {
			return err
		}
		if !found {
			rec = profile.Synthesize(acct.Email, acct.DisplayName)
		}
		rec.Role = profile.RoleAdmin
		if err := profiles.Put(ctx, acct.ID, rec); err != nil {
			return err
		}
		printSuccess("%s is now an administrator", acct.Email)
		return nil
	},
}

var (
	importName       string
	importCredential string
)

var accountsCmd = &cobra.Command{
	Use:   "accounts",
	Short: "Provider account maintenance",
}

var accountsImportCmd = &cobra.Command{
	Use:   "import <email>",
	Short: "Import a legacy account whose credential the provider cannot check",
	Long: `Import a legacy account. Its password never verifies, so its first
sign-in falls back to a code mailed to the account.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		email := strings.ToLower(strings.TrimSpace(args[0]))
		acct, err := providerAdmin().ImportAccount(ctx, email, importName, importCredential)
		if err != nil {
			return err
		}
		if err := profileStore().Put(ctx, acct.ID, profile.Synthesize(acct.Email, acct.DisplayName)); err != nil {
			return err
		}
		printSuccess("Imported %s", acct.Email)
		printAccount(acct)
		return nil
	},
}

var accountsShowCmd = &cobra.Command{
	Use:   "show <email>",
	Short: "Show a provider account and its profile",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		acct, err := lookupAccount(ctx, args[0])
		if err != nil {
			return err
		}
		rec, found, err := profileStore().Get(ctx, acct.ID)
		if err != nil {
			return err
		}

		rows := [][2]string{
			{"Account", acct.ID},
			{"Email", acct.Email},
		}
		if found {
			rows = append(rows,
				[2]string{"Name", rec.Name},
				[2]string{"Role", string(rec.Role)},
				[2]string{"Contact email", rec.ContactEmail()},
			)
		} else {
			rows = append(rows, [2]string{"Profile", "none"})
		}
		printPairs(os.Stdout, rows)
		return nil
	},
}

func init() {
	adminCmd.AddCommand(adminSignInCmd, adminGrantCmd)

	f := accountsImportCmd.Flags()
	f.StringVar(&importName, "name", "", "display name")
	f.StringVar(&importCredential, "credential", "", "legacy password hash, stored as is")
	_ = accountsImportCmd.MarkFlagRequired("credential")
	accountsCmd.AddCommand(accountsImportCmd, accountsShowCmd)
}

func providerAdmin() *idp.RedisAdmin {
	return idp.NewRedisAdmin(app.redis, nil, idp.RedisConfig{
		Prefix: app.settings.Engine.Provider.RedisPrefix,
	})
}

func profileStore() *profile.Store {
	return profile.NewStore(docstore.New(app.redis, docstore.Config{
		Prefix:  app.settings.Engine.Store.RedisPrefix,
		Indexes: profile.Indexes(),
	}))
}

func lookupAccount(ctx context.Context, email string) (idp.Account, error) {
	acct, err := providerAdmin().LookupAccount(ctx, strings.ToLower(strings.TrimSpace(email)))
	if idp.IsCode(err, idp.CodeUserNotFound) {
		return idp.Account{}, fmt.Errorf("no account for %s", email)
	}
	return acct, err
}
