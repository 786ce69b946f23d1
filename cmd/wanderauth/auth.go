package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/MrEthical07/wanderauth"
	"github.com/MrEthical07/wanderauth/idp"
)

var resolveCmd = &cobra.Command{
	Use:   "resolve <identifier>",
	Short: "Show the auth email an email, phone number or username signs in as",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		res, err := app.engine.Resolve(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		printPairs(os.Stdout, [][2]string{
			{"Input", res.Input},
			{"Kind", res.Kind.String()},
			{"Auth email", res.Email},
		})
		return nil
	},
}

var loginCmd = &cobra.Command{
	Use:   "login <identifier>",
	Short: "Sign in with an email, phone number or username",
	Long: `Sign in with a password. Accounts imported from the legacy site are
asked for a verification code mailed to their contact address instead.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		pw, err := promptPassword(os.Stderr)
		if err != nil {
			return err
		}

		res, err := app.engine.Login(ctx, args[0], pw)
		if !res.OTPRequired {
			if err != nil {
				return err
			}
			printSuccess("Signed in as %s", res.Email)
			printAccount(res.Session.Account)
			return nil
		}

		if err != nil {
			printWarning("could not send the code to %s: %v", res.CodeSentTo, err)
		}
		sess, err := readCode(ctx, res.CodeSentTo, func(code string) (idp.Session, error) {
			return app.engine.ConfirmLoginOTP(ctx, code)
		})
		if err != nil {
			return err
		}
		printSuccess("Signed in as %s", sess.Account.Email)
		printAccount(sess.Account)
		return nil
	},
}

var registration wanderauth.RegistrationInput

var registerCmd = &cobra.Command{
	Use:   "register <email-or-phone>",
	Short: "Create an account after verifying a mailed code",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		in := registration
		in.Identifier = args[0]

		pw, err := promptPassword(os.Stderr)
		if err != nil {
			return err
		}
		in.Password = pw

		if err := app.engine.StartRegistration(ctx, in); err != nil {
			if !errors.Is(err, wanderauth.ErrDispatch) {
				return err
			}
			printWarning("could not send the code: %v", err)
		}

		target := in.Identifier
		if ch, ok := app.engine.PendingChallenge(); ok {
			target = ch.Target
		}
		sess, err := readCode(ctx, target, func(code string) (idp.Session, error) {
			return app.engine.ConfirmRegistration(ctx, code)
		})
		if sess.Account.ID == "" {
			return err
		}
		if err != nil {
			printWarning("account created but the profile was not saved: %v", err)
		}
		printSuccess("Registered %s", sess.Account.Email)
		printAccount(sess.Account)
		return nil
	},
}

var signOutCmd = &cobra.Command{
	Use:   "signout",
	Short: "Sign out and forget the admin session on this device",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := app.engine.SignOut(cmd.Context()); err != nil {
			return err
		}
		printSuccess("Signed out")
		return nil
	},
}

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Run a bootstrap pass and show the signed-in account",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		if _, err := awaitBootstrap(cmd.Context()); err != nil {
			return err
		}
		printSession()
		return nil
	},
}

func init() {
	f := registerCmd.Flags()
	f.StringVar(&registration.ContactEmail, "contact-email", "", "address that receives the code for a phone sign-up")
	f.StringVar(&registration.Name, "name", "", "display name")
	f.StringVar(&registration.Mobile, "mobile", "", "mobile number stored on the profile")
	f.StringVar(&registration.Username, "username", "", "username usable at sign-in")
	_ = registerCmd.MarkFlagRequired("name")
}

// readCode prompts until confirm accepts a code. "resend" mails a new code
// and an empty line gives up.
func readCode(ctx context.Context, target string, confirm func(code string) (idp.Session, error)) (idp.Session, error) {
	fmt.Fprintf(os.Stderr, "A 6-digit code was sent to %s. Type resend for a new one.\n", target)
	for {
		code, err := promptLine(stdin, os.Stderr, "Code")
		if err != nil {
			app.engine.CloseModal()
			return idp.Session{}, err
		}
		switch code {
		case "":
			app.engine.CloseModal()
			return idp.Session{}, errors.New("verification cancelled")
		case "resend":
			if err := app.engine.ResendCode(ctx); err != nil {
				printWarning("resend failed: %v", err)
			}
			continue
		}

		sess, err := confirm(code)
		if errors.Is(err, wanderauth.ErrInvalidCode) {
			printWarning("that code is not valid")
			continue
		}
		return sess, err
	}
}

func printAccount(acct idp.Account) {
	printPairs(os.Stdout, [][2]string{
		{"Account", acct.ID},
		{"Email", acct.Email},
		{"Display name", acct.DisplayName},
	})
}

func printSession() {
	state := app.engine.Session()
	if state.Account == nil {
		fmt.Println("Not signed in")
		return
	}

	rows := [][2]string{
		{"Account", state.Account.ID},
		{"Email", state.Account.Email},
	}
	if state.Synthetic {
		rows = append(rows, [2]string{"Session", "persisted admin"})
	}
	if p := state.Profile; p != nil {
		rows = append(rows,
			[2]string{"Name", p.Name},
			[2]string{"Role", string(p.Role)},
		)
		if p.Username != nil {
			rows = append(rows, [2]string{"Username", *p.Username})
		}
		if p.Mobile != nil {
			rows = append(rows, [2]string{"Mobile", *p.Mobile})
		}
		if c := p.ContactEmail(); c != p.Email {
			rows = append(rows, [2]string{"Contact email", c})
		}
	}
	printPairs(os.Stdout, rows)
}
