package cmd

import (
	"fmt"
	"os"

	bencodego "github.com/jackpal/bencode-go"
	"github.com/spf13/cobra"
)

// dumpCmd decodes an arbitrary bencoded blob with the generic
// jackpal/bencode-go decoder and pretty-prints it — a debug aid independent
// of the project's own pkg/bencode codec, which is used everywhere else.
var dumpCmd = &cobra.Command{
	Use:   "dump <file>",
	Short: "Decode and pretty-print an arbitrary bencoded file",
	Args:  cobra.ExactArgs(1),
	RunE: func(c *cobra.Command, args []string) error {
		f, err := os.Open(args[0])
		if err != nil {
			return err
		}
		defer f.Close()

		v, err := bencodego.Decode(f)
		if err != nil {
			return fmt.Errorf("dump: decode: %w", err)
		}

		dumpValue(v, 0)
		return nil
	},
}

func dumpValue(v interface{}, indent int) {
	prefix := ""
	for i := 0; i < indent; i++ {
		prefix += "  "
	}
	switch val := v.(type) {
	case map[string]interface{}:
		for _, k := range sortedKeys(val) {
			fmt.Printf("%s%s:\n", prefix, k)
			dumpValue(val[k], indent+1)
		}
	case []interface{}:
		for i, item := range val {
			fmt.Printf("%s[%d]:\n", prefix, i)
			dumpValue(item, indent+1)
		}
	case string:
		if len(val) > 80 {
			fmt.Printf("%s%q... (%d bytes)\n", prefix, val[:80], len(val))
		} else {
			fmt.Printf("%s%q\n", prefix, val)
		}
	default:
		fmt.Printf("%s%v\n", prefix, val)
	}
}

func sortedKeys(m map[string]interface{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	for i := 1; i < len(keys); i++ {
		for j := i; j > 0 && keys[j] < keys[j-1]; j-- {
			keys[j], keys[j-1] = keys[j-1], keys[j]
		}
	}
	return keys
}
