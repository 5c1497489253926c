package main

import (
	"bytes"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"google.golang.org/protobuf/reflect/protoreflect"

	"github.com/fairblock/typereg/anycodec"
	"github.com/fairblock/typereg/typeregistry"
)

const (
	outputText = "text"
	outputJSON = "json"
)

type listedType struct {
	URL  string `json:"url"`
	Name string `json:"name"`
	File string `json:"file"`
}

func newListCmd(opts *rootOptions) *cobra.Command {
	var (
		pkg    string
		output string
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the registered type URLs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if output != outputText && output != outputJSON {
				return fmt.Errorf("unknown output format %q, expected %s or %s", output, outputText, outputJSON)
			}
			reg, err := opts.loadRegistry(cmd)
			if err != nil {
				return err
			}
			var types []listedType
			for _, e := range reg.Entries() {
				md := e.Type.Descriptor()
				if pkg != "" && string(md.ParentFile().Package()) != pkg {
					continue
				}
				types = append(types, listedType{URL: e.URL, Name: string(md.FullName()), File: md.ParentFile().Path()})
			}
			if output == outputJSON {
				if types == nil {
					types = []listedType{}
				}
				encoder := json.NewEncoder(cmd.OutOrStdout())
				encoder.SetIndent("", "  ")
				return encoder.Encode(types)
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			for _, t := range types {
				fmt.Fprintf(w, "%s\t%s\n", t.URL, t.File)
			}
			return w.Flush()
		},
	}
	cmd.Flags().StringVar(&pkg, "package", "", "Only list types in this proto package")
	cmd.Flags().StringVarP(&output, "output", "o", outputText, "Output format: text or json")
	return cmd
}

func newResolveCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "resolve <type-url>",
		Short: "Show the message type registered for a type URL",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := opts.loadRegistry(cmd)
			if err != nil {
				return err
			}
			mt, err := resolve(reg, args[0])
			if err != nil {
				return err
			}
			printMessage(cmd.OutOrStdout(), args[0], mt.Descriptor())
			return nil
		},
	}
}

// resolve is Registry.Resolve with a hint for URLs that are not canonical,
// since those can never match.
func resolve(reg *typeregistry.Registry, url string) (protoreflect.MessageType, error) {
	mt, err := reg.Resolve(url)
	if err != nil {
		if verr := typeregistry.ValidateURL(url); verr != nil {
			return nil, fmt.Errorf("%w (%v)", err, verr)
		}
		return nil, err
	}
	return mt, nil
}

func printMessage(w io.Writer, url string, md protoreflect.MessageDescriptor) {
	fmt.Fprintf(w, "url:     %s\n", url)
	fmt.Fprintf(w, "message: %s\n", md.FullName())
	fmt.Fprintf(w, "file:    %s\n", md.ParentFile().Path())
	fields := md.Fields()
	if fields.Len() == 0 {
		return
	}
	fmt.Fprintln(w, "fields:")
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for i, length := 0, fields.Len(); i < length; i++ {
		fd := fields.Get(i)
		fmt.Fprintf(tw, "  %d\t%s\t%s\n", fd.Number(), fd.Name(), fieldType(fd))
	}
	_ = tw.Flush()
}

func fieldType(fd protoreflect.FieldDescriptor) string {
	switch {
	case fd.IsMap():
		return fmt.Sprintf("map<%s, %s>", fieldType(fd.MapKey()), fieldType(fd.MapValue()))
	case fd.IsList():
		return "repeated " + scalarType(fd)
	default:
		return scalarType(fd)
	}
}

func scalarType(fd protoreflect.FieldDescriptor) string {
	switch fd.Kind() {
	case protoreflect.MessageKind, protoreflect.GroupKind:
		return string(fd.Message().FullName())
	case protoreflect.EnumKind:
		return string(fd.Enum().FullName())
	default:
		return fd.Kind().String()
	}
}

func newDecodeCmd(opts *rootOptions) *cobra.Command {
	var useHex bool
	cmd := &cobra.Command{
		Use:   "decode <type-url> <payload>",
		Short: "Decode a binary message and print it as JSON",
		Long: `Decode a binary message and print it as JSON.

The payload is base64 encoded, or hex encoded with --hex.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := decodePayload(args[1], useHex)
			if err != nil {
				return err
			}
			reg, err := opts.loadRegistry(cmd)
			if err != nil {
				return err
			}
			if _, err := resolve(reg, args[0]); err != nil {
				return err
			}
			codec := anycodec.New(reg)
			msg, err := codec.Decode(args[0], b)
			if err != nil {
				return err
			}
			out, err := codec.MarshalJSON(msg)
			if err != nil {
				return err
			}
			var indented bytes.Buffer
			if err := json.Indent(&indented, out, "", "  "); err != nil {
				return err
			}
			indented.WriteByte('\n')
			_, err = indented.WriteTo(cmd.OutOrStdout())
			return err
		},
	}
	cmd.Flags().BoolVar(&useHex, "hex", false, "The payload is hex encoded")
	return cmd
}

func decodePayload(payload string, useHex bool) ([]byte, error) {
	payload = strings.TrimSpace(payload)
	if useHex {
		b, err := hex.DecodeString(strings.TrimPrefix(payload, "0x"))
		if err != nil {
			return nil, fmt.Errorf("invalid hex payload: %w", err)
		}
		return b, nil
	}
	b, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("invalid base64 payload: %w", err)
	}
	return b, nil
}

func newEncodeCmd(opts *rootOptions) *cobra.Command {
	var useHex bool
	cmd := &cobra.Command{
		Use:   "encode <type-url> <json>",
		Short: "Encode a JSON message and print its binary form",
		Long: `Encode a JSON message and print its binary form.

The output is base64 encoded, or hex encoded with --hex.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := opts.loadRegistry(cmd)
			if err != nil {
				return err
			}
			if _, err := resolve(reg, args[0]); err != nil {
				return err
			}
			codec := anycodec.New(reg)
			msg, err := codec.UnmarshalJSON(args[0], []byte(args[1]))
			if err != nil {
				return err
			}
			b, err := codec.Encode(msg)
			if err != nil {
				return err
			}
			if useHex {
				fmt.Fprintln(cmd.OutOrStdout(), hex.EncodeToString(b))
			} else {
				fmt.Fprintln(cmd.OutOrStdout(), base64.StdEncoding.EncodeToString(b))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&useHex, "hex", false, "Print the output hex encoded")
	return cmd
}
