package mmvdisk

import (
	"context"
	"regexp"
	"strings"
)

// Sentinel lines the tool prints when a query matches nothing. They mean an
// empty inventory, not a failure.
const (
	allOKSentinel     = "All pdisks are ok."
	noReplaceSentinel = "No pdisks are marked for replacement."
)

// Advisory noise the tool mixes into the replacement listing.
const replacePriorityAdvisory = "mmvdisk: A lower priority value means a higher need for replacement."

var columnSep = regexp.MustCompile(`\s{2,}`)

// Client issues the tool's inventory queries and parses their output.
type Client struct {
	runner Runner
}

func NewClient(r Runner) *Client {
	return &Client{runner: r}
}

// NotOK lists disks the tool reports as not healthy.
func (c *Client) NotOK(ctx context.Context) ([]Ref, error) {
	return c.list(ctx, "--not-ok")
}

// MarkedForReplacement lists disks the tool has marked for replacement.
func (c *Client) MarkedForReplacement(ctx context.Context) ([]Ref, error) {
	return c.list(ctx, "--replace")
}

func (c *Client) list(ctx context.Context, filter string) ([]Ref, error) {
	res, err := c.runner.Run(ctx, "pdisk", "list", "--rg", "all", filter)
	if err != nil {
		return nil, err
	}
	return parseListing(res.Command, res.Stdout)
}

// Detail fetches the long-form record for one pdisk.
func (c *Client) Detail(ctx context.Context, ref Ref) (DiskRecord, error) {
	res, err := c.runner.Run(ctx, "pdisk", "list", "--rg", ref.RecoveryGroup, "--pdisk", ref.Name, "-L")
	if err != nil {
		return DiskRecord{}, err
	}
	return parseStanza(res.Command, res.Stdout)
}

// Inventory pulls a full snapshot: the union of not-ok and marked-for-
// replacement disks, each resolved to its detail record. The (recovery
// group, pdisk) pair is unique within the returned slice.
func (c *Client) Inventory(ctx context.Context) ([]DiskRecord, error) {
	notOK, err := c.NotOK(ctx)
	if err != nil {
		return nil, err
	}
	marked, err := c.MarkedForReplacement(ctx)
	if err != nil {
		return nil, err
	}

	seen := make(map[Ref]bool, len(notOK)+len(marked))
	refs := make([]Ref, 0, len(notOK)+len(marked))
	for _, r := range append(notOK, marked...) {
		if seen[r] {
			continue
		}
		seen[r] = true
		refs = append(refs, r)
	}

	records := make([]DiskRecord, 0, len(refs))
	for _, ref := range refs {
		rec, err := c.Detail(ctx, ref)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, nil
}

// parseListing extracts (recovery group, pdisk) pairs from a columnar
// listing. Columns are aligned with two or more spaces; the header names the
// columns we care about. A malformed listing fails as a whole.
func parseListing(command, out string) ([]Ref, error) {
	if strings.Contains(out, allOKSentinel) || strings.Contains(out, noReplaceSentinel) {
		return nil, nil
	}

	idxRG, idxPD := -1, -1
	var refs []Ref
	seen := make(map[Ref]bool)

	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimRight(line, " \t\r")
		if strings.TrimSpace(line) == "" || line == replacePriorityAdvisory {
			continue
		}

		// The header wraps "declustered array" onto its own fragment; drop
		// the fragment so column positions line up with the data rows. A
		// line that was only the fragment carries no columns at all.
		clean := strings.TrimSpace(strings.ReplaceAll(line, "declustered", ""))
		if clean == "" {
			continue
		}

		fields := columnSep.Split(clean, -1)

		if idxRG < 0 {
			for i, f := range fields {
				switch f {
				case "recovery group":
					idxRG = i
				case "pdisk":
					idxPD = i
				}
			}
			if idxRG < 0 || idxPD < 0 {
				return nil, &ParseError{Command: command, Line: line, Msg: "expected header naming recovery group and pdisk columns"}
			}
			continue
		}

		if isSeparatorRow(fields) {
			continue
		}
		if len(fields) <= idxRG || len(fields) <= idxPD {
			return nil, &ParseError{Command: command, Line: line, Msg: "row has fewer columns than header"}
		}

		ref := Ref{RecoveryGroup: fields[idxRG], Name: fields[idxPD]}
		if seen[ref] {
			return nil, &ParseError{Command: command, Line: line, Msg: "duplicate pdisk " + ref.String() + " in one snapshot"}
		}
		seen[ref] = true
		refs = append(refs, ref)
	}

	if idxRG < 0 {
		return nil, &ParseError{Command: command, Msg: "no header found in output"}
	}
	return refs, nil
}

func isSeparatorRow(fields []string) bool {
	for _, f := range fields {
		if strings.Trim(f, "- ") != "" {
			return false
		}
	}
	return true
}

// parseStanza parses the key=value detail output of `pdisk list ... -L`
// into a DiskRecord.
func parseStanza(command, out string) (DiskRecord, error) {
	kv := make(map[string]string)

	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(line), "pdisk:"))
		if line == "" || !strings.Contains(line, "=") {
			continue
		}
		key, value, _ := strings.Cut(line, "=")
		kv[strings.TrimSpace(key)] = unquote(strings.TrimSpace(value))
	}

	if kv["name"] == "" || kv["recoveryGroup"] == "" {
		return DiskRecord{}, &ParseError{Command: command, Msg: "detail output missing name or recoveryGroup"}
	}

	raw := kv["state"]
	return DiskRecord{
		Name:          kv["name"],
		RecoveryGroup: kv["recoveryGroup"],
		State:         mapState(raw),
		RawState:      raw,
		Location:      kv["location"],
		Hardware:      kv["hardware"],
		UserLocation:  kv["userLocation"],
		Server:        kv["server"],
	}, nil
}

func unquote(s string) string {
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		return s[1 : len(s)-1]
	}
	return s
}
