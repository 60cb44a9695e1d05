package table

import (
	"encoding/xml"
	"io"
	"os"
	"strings"
)

// DumpKnob is one knob of a BIOS knob dump.
type DumpKnob struct {
	Name       string       `xml:"name,attr"`
	SetupType  string       `xml:"setupType,attr"`
	CurrentVal string       `xml:"CurrentVal,attr"`
	Options    []DumpOption `xml:"options>option"`
}

// DumpOption is one selectable value of a knob.
type DumpOption struct {
	Text  string `xml:"text,attr"`
	Value string `xml:"value,attr"`
}

// ReadOnly reports whether the knob cannot be changed.
func (k DumpKnob) ReadOnly() bool {
	t := strings.ToLower(strings.ReplaceAll(k.SetupType, " ", ""))
	return t == "readonly" || t == "ro"
}

type knobDump struct {
	XMLName xml.Name   `xml:"SYSTEM"`
	Knobs   []DumpKnob `xml:"biosknobs>knob"`
}

// ReadKnobDump parses a BIOS knob dump. Read-only knobs are dropped.
func ReadKnobDump(r io.Reader) ([]DumpKnob, error) {
	var dump knobDump
	if err := xml.NewDecoder(r).Decode(&dump); err != nil {
		return nil, err
	}
	out := make([]DumpKnob, 0, len(dump.Knobs))
	for _, k := range dump.Knobs {
		k.Name = strings.TrimSpace(Normalize(k.Name))
		if k.Name == "" || k.ReadOnly() {
			continue
		}
		out = append(out, k)
	}
	return out, nil
}

// LoadKnobDump reads a knob dump file.
func LoadKnobDump(path string) ([]DumpKnob, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &ConfigError{Code: ErrKnobDump, Path: path, Message: "cannot open knob dump", Err: err}
	}
	defer f.Close()

	knobs, err := ReadKnobDump(f)
	if err != nil {
		return nil, &ConfigError{Code: ErrKnobDump, Path: path, Message: "invalid knob dump", Err: err}
	}
	return knobs, nil
}

// MergeKnobDump adds dump knobs to the feature table. Each knob becomes
// a feature of the same name: every option is reachable by its text and
// by its value, and a knob without options by its current value.
// Declared settings are never overwritten. Returns the number of
// settings added.
func MergeKnobDump(ft *FeatureTable, knobs []DumpKnob) int {
	added := 0
	add := func(feature, value, knobValue string) {
		if value == "" {
			return
		}
		key := FeatureKey{Feature: feature, Value: value}
		if ft.AddIfAbsent(key, []Knob{{Name: feature, Value: knobValue}}) {
			added++
		}
	}
	for _, k := range knobs {
		if len(k.Options) == 0 {
			v := strings.TrimSpace(k.CurrentVal)
			add(k.Name, v, v)
			continue
		}
		for _, opt := range k.Options {
			text := strings.TrimSpace(Normalize(opt.Text))
			value := strings.TrimSpace(opt.Value)
			add(k.Name, text, value)
			add(k.Name, value, value)
		}
	}
	return added
}
