package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/iangodin/dhcpdb/wire"
)

var optionCmd = &cobra.Command{
	Use:   "option",
	Short: "Manage option templates",
}

func parseOptionArg(call string) wire.Option {
	g := loadGrammar()
	c, err := wire.ParseCall(call)
	if err != nil {
		fatalf("%s", err)
	}
	opt, err := wire.EncodeOption(g, newResolver(), c)
	if err != nil {
		fatalf("%s", err)
	}
	return opt
}

func addOptionCmd(use, short string, replace bool) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.RangeArgs(2, 3),
		Run: func(cmd *cobra.Command, args []string) {
			lo := mustIP(args[0])
			hi := lo
			call := args[1]
			if len(args) == 3 {
				hi = mustIP(args[1])
				call = args[2]
			}
			opt := parseOptionArg(call)

			st := openStore()
			defer st.Close()
			sess, err := st.NewSession(context.Background())
			if err != nil {
				fatalf("starting session: %s", err)
			}
			defer sess.Close()
			if err := sess.AddOption(context.Background(), lo, hi, opt, replace); err != nil {
				fatalf("add-option: %s", err)
			}
		},
	}
}

var optionAddCmd = addOptionCmd("add <ip> [<ip>] <option>", "Add an option template for an IP range", false)
var optionReplaceCmd = addOptionCmd("replace <ip> [<ip>] <option>", "Replace an option template for an IP range", true)

var optionRemoveCmd = &cobra.Command{
	Use:   "remove <ip> [<ip>] <option>",
	Short: "Remove an option template for an IP range",
	Args:  cobra.RangeArgs(2, 3),
	Run: func(cmd *cobra.Command, args []string) {
		lo := mustIP(args[0])
		hi := lo
		call := args[1]
		if len(args) == 3 {
			hi = mustIP(args[1])
			call = args[2]
		}
		opt := parseOptionArg(call)

		st := openStore()
		defer st.Close()
		sess, err := st.NewSession(context.Background())
		if err != nil {
			fatalf("starting session: %s", err)
		}
		defer sess.Close()
		if err := sess.RemoveOption(context.Background(), lo, hi, opt); err != nil {
			fatalf("remove-option: %s", err)
		}
	},
}

var optionListCmd = &cobra.Command{
	Use:   "list [ip]",
	Short: "List option templates, optionally filtered to those covering one IP address",
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		g := loadGrammar()

		st := openStore()
		defer st.Close()
		sess, err := st.NewSession(context.Background())
		if err != nil {
			fatalf("starting session: %s", err)
		}
		defer sess.Close()

		if len(args) == 1 {
			ip := mustIP(args[0])
			opts, err := sess.GetOptions(context.Background(), ip)
			if err != nil {
				fatalf("options: %s", err)
			}
			for _, o := range opts {
				human, err := wire.DecodeOption(g, o.Bytes())
				if err != nil {
					fatalf("decoding option %d: %s", o.ID, err)
				}
				cmd.Println(human)
			}
			return
		}

		all, err := sess.AllOptions(context.Background())
		if err != nil {
			fatalf("options: %s", err)
		}
		for _, t := range all {
			human, err := wire.DecodeOption(g, t.Option.Bytes())
			if err != nil {
				fatalf("decoding option %d: %s", t.Option.ID, err)
			}
			cmd.Printf("%s - %s: %s\n", t.IPLo, t.IPHi, human)
		}
	},
}

func init() {
	optionCmd.AddCommand(optionAddCmd, optionReplaceCmd, optionRemoveCmd, optionListCmd)
}
