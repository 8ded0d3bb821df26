package cli

import (
	"encoding/hex"

	"github.com/spf13/cobra"

	"github.com/iangodin/dhcpdb/wire"
)

var encodeCmd = &cobra.Command{
	Use:   "encode <option> ...",
	Short: "Encode one or more human-form options into hex",
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		g := loadGrammar()
		r := newResolver()
		for _, a := range args {
			call, err := wire.ParseCall(a)
			if err != nil {
				fatalf("%s", err)
			}
			opt, err := wire.EncodeOption(g, r, call)
			if err != nil {
				fatalf("encoding %q: %s", a, err)
			}
			cmd.Println(hex.EncodeToString(opt.Bytes()))
		}
	},
}

var decodeCmd = &cobra.Command{
	Use:   "decode <hex> ...",
	Short: "Decode one or more raw hex options into human form",
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		g := loadGrammar()
		for _, a := range args {
			raw, err := hex.DecodeString(a)
			if err != nil {
				fatalf("%q is not valid hex: %s", a, err)
			}
			human, err := wire.DecodeOption(g, raw)
			if err != nil {
				fatalf("decoding %q: %s", a, err)
			}
			cmd.Println(human)
		}
	},
}
