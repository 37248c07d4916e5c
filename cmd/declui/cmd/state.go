package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/go-drift/declui/pkg/errors"
	"github.com/go-drift/declui/pkg/state"
)

func init() {
	RegisterCommand(newStateCmd)
}

// boltExtensions select the bbolt store; every other path is a JSON file.
var boltExtensions = map[string]bool{".db": true, ".bolt": true, ".bbolt": true}

// readSnapshot loads the snapshot at path from the store its extension
// names.
func readSnapshot(path string) (state.Snapshot, error) {
	if !boltExtensions[strings.ToLower(filepath.Ext(path))] {
		return state.JSONFile(path).ReadSnapshot()
	}
	db, err := state.OpenBoltStore(path)
	if err != nil {
		return nil, err
	}
	defer db.Close()
	return db.ReadSnapshot()
}

func writeSnapshot(path string, snap state.Snapshot) error {
	if !boltExtensions[strings.ToLower(filepath.Ext(path))] {
		return state.JSONFile(path).WriteSnapshot(snap)
	}
	db, err := state.OpenBoltStore(path)
	if err != nil {
		return err
	}
	if err := db.WriteSnapshot(snap); err != nil {
		db.Close()
		return err
	}
	return db.Close()
}

func newStateCmd(a *app) *cobra.Command {
	var (
		format string
		out    string
	)
	cmd := &cobra.Command{
		Use:   "state <snapshot>",
		Short: "Print or convert a state snapshot",
		Long: `Print the cells of a state snapshot, one key per line.

Snapshots with a .db, .bolt or .bbolt extension are bbolt databases;
anything else is a JSON object. --out writes the snapshot to another
store, so a JSON snapshot can be turned into a database and back.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			snap, err := readSnapshot(args[0])
			if err != nil {
				return err
			}
			if out != "" {
				if err := writeSnapshot(out, snap); err != nil {
					return err
				}
				fmt.Fprintf(a.out, "%s %d keys to %s\n", a.styles.ok.Render("wrote"), len(snap), out)
				return nil
			}
			switch format {
			case "text":
				a.printSnapshot(snap)
				return nil
			case "json":
				data, err := json.MarshalIndent(snap, "", "  ")
				if err != nil {
					return err
				}
				fmt.Fprintln(a.out, string(data))
				return nil
			default:
				return fmt.Errorf("unknown format %q (want text or json)", format)
			}
		},
	}
	cmd.Flags().StringVar(&format, "format", "text", "output format: text or json")
	cmd.Flags().StringVar(&out, "out", "", "write the snapshot to this store instead of printing it")
	return cmd
}

func (a *app) printSnapshot(snap state.Snapshot) {
	keys := make([]string, 0, len(snap))
	for k := range snap {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(a.out, "%s = %s\n", a.styles.prop.Render(k), snap[k])
	}
}

// seedState creates one leaf cell per snapshot key, typed from the JSON
// value: strings, bools, integral numbers as int and other numbers as
// float64. Keys holding anything else are skipped with a warning.
func seedState(m *state.Manager, path string) error {
	const op = "declui.state"
	snap, err := readSnapshot(path)
	if err != nil {
		return err
	}
	keys := make([]string, 0, len(snap))
	for k := range snap {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, key := range keys {
		var v any
		dec := json.NewDecoder(bytes.NewReader(snap[key]))
		dec.UseNumber()
		if err := dec.Decode(&v); err != nil {
			return errors.New(errors.KindStateManagement, op, err).At(key)
		}
		switch v := v.(type) {
		case string:
			_, err = state.CreateState(m, key, v)
		case bool:
			_, err = state.CreateState(m, key, v)
		case json.Number:
			if i, ierr := v.Int64(); ierr == nil {
				_, err = state.CreateState(m, key, int(i))
			} else if f, ferr := v.Float64(); ferr == nil {
				_, err = state.CreateState(m, key, f)
			} else {
				err = ferr
			}
		default:
			errors.WarnAt(op, key, "skipping %T value", v)
			continue
		}
		if err != nil {
			return err
		}
	}
	return nil
}
