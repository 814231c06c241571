// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/Thermoquad/autothrottle/pkg/mglservo"
	"github.com/spf13/cobra"
)

var (
	decodeAck    bool
	decodeVerify bool
)

var decodeCmd = &cobra.Command{
	Use:   "decode <hex...>",
	Short: "Decode captured bytes in human-readable format",
	Long: `Decode bytes captured from the servo link without opening a connection.

Bytes may be given as separate arguments or one string, with or without 0x
prefixes, separated by spaces, commas or colons:

  autothrottle decode D5 82 06 00 00 AA 55 01 FE A8 55
  autothrottle decode 0xD5,0x82,0x06,...
  autothrottle decode --ack D58207102001B0040C28C3F4

By default the bytes are parsed as an outbound frame and both checksums are
verified. With --ack they are decoded as a servo acknowledgement; add
--verify to also check the acknowledgement's trailing checksums.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runDecode,
}

func init() {
	rootCmd.AddCommand(decodeCmd)
	decodeCmd.Flags().BoolVar(&decodeAck, "ack", false, "Decode as a servo acknowledgement")
	decodeCmd.Flags().BoolVar(&decodeVerify, "verify", false, "Verify acknowledgement checksums (with --ack)")
}

func runDecode(cmd *cobra.Command, args []string) error {
	data, err := parseHexArgs(args)
	if err != nil {
		return err
	}
	return decodeBytes(os.Stdout, data, decodeAck, decodeVerify)
}

// parseHexArgs converts hex byte arguments into raw bytes
func parseHexArgs(args []string) ([]byte, error) {
	joined := strings.NewReplacer(",", " ", ":", " ").Replace(strings.Join(args, " "))

	var data []byte
	for _, tok := range strings.Fields(joined) {
		tok = strings.TrimPrefix(strings.TrimPrefix(tok, "0x"), "0X")
		b, err := hex.DecodeString(tok)
		if err != nil {
			return nil, fmt.Errorf("invalid hex %q: %w", tok, err)
		}
		data = append(data, b...)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("no bytes to decode")
	}
	return data, nil
}

func decodeBytes(w io.Writer, data []byte, asAck, verify bool) error {
	if !asAck {
		frame, err := mglservo.ParseFrame(data)
		if err != nil {
			return err
		}
		fmt.Fprint(w, mglservo.FormatFrame(frame))
		return nil
	}

	if verify {
		if err := mglservo.VerifyAck(data); err != nil {
			return fmt.Errorf("ack verification: %w", err)
		}
	}

	status, err := mglservo.DecodeAck(data)
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "ACK\n")
	fmt.Fprint(w, mglservo.FormatAck(status))
	if verify {
		fmt.Fprintf(w, "  Checksums: ok\n")
	}
	fmt.Fprintf(w, "  Bytes: %s\n", mglservo.FormatHex(data))
	return nil
}
