package workflow

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/gridflow/gridflow/types"
)

// Row is one tabular workflow declaration: a single node of a single graph.
// Optional columns may be blank.
type Row struct {
	Graph       string
	Node        string
	Edge        string
	Context     string
	AgentType   string
	SuccessNext string
	FailureNext string
	InputFields string
	OutputField string
	Prompt      string
}

// Sheet is the intermediate, unvalidated output of the parser: rows grouped
// per graph name, both groups and rows in declaration order.
type Sheet struct {
	graphs []string
	rows   map[string][]parsedRow
}

type parsedRow struct {
	row  int
	spec *NodeSpec
}

// GraphNames returns the distinct graph names in declaration order.
func (s *Sheet) GraphNames() []string {
	out := make([]string, len(s.graphs))
	copy(out, s.graphs)
	return out
}

// dynamicPrefix marks an edge value as a dynamic-routing function reference,
// e.g. "fn:pick_branch".
const dynamicPrefix = "fn:"

// recognized header names, lowercased with spaces/dashes folded to underscores.
var headerColumns = map[string]int{
	"graph":        0,
	"node":         1,
	"edge":         2,
	"context":      3,
	"agent_type":   4,
	"success_next": 5,
	"failure_next": 6,
	"input_fields": 7,
	"output_field": 8,
	"prompt":       9,
}

// ParseCSVFile parses a workflow sheet from a CSV file.
func ParseCSVFile(path string) (*Sheet, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open workflow sheet: %w", err)
	}
	defer f.Close()
	return ParseCSV(f)
}

// ParseCSV parses a workflow sheet from CSV data. The first record is the
// header; column order is taken from it, and unrecognized columns are
// ignored. Blank optional columns are valid.
func ParseCSV(r io.Reader) (*Sheet, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read workflow sheet header: %w", err)
	}

	index := make(map[int]int, len(header))
	for i, col := range header {
		name := normalizeHeader(col)
		if slot, ok := headerColumns[name]; ok {
			index[i] = slot
		}
	}
	if len(index) == 0 {
		return nil, types.NewError(types.ErrMalformedRow, "header contains no recognized columns")
	}

	var rows []Row
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read workflow sheet row: %w", err)
		}
		var fields [10]string
		for i, value := range record {
			if slot, ok := index[i]; ok {
				fields[slot] = strings.TrimSpace(value)
			}
		}
		rows = append(rows, Row{
			Graph:       fields[0],
			Node:        fields[1],
			Edge:        fields[2],
			Context:     fields[3],
			AgentType:   fields[4],
			SuccessNext: fields[5],
			FailureNext: fields[6],
			InputFields: fields[7],
			OutputField: fields[8],
			Prompt:      fields[9],
		})
	}

	return ParseRows(rows)
}

// ParseRows parses pre-split rows into a Sheet. A row declaring both a
// direct edge and conditional routing is a fatal ConflictingRoutingError;
// the two styles are mutually exclusive per node.
func ParseRows(rows []Row) (*Sheet, error) {
	sheet := &Sheet{rows: make(map[string][]parsedRow)}

	for i, row := range rows {
		rowNum := i + 1
		if row.Graph == "" && row.Node == "" {
			// Blank separator rows are tolerated.
			continue
		}
		if row.Graph == "" || row.Node == "" {
			return nil, types.NewError(types.ErrMalformedRow,
				"row must declare both graph and node names").WithRow(rowNum)
		}

		routing, err := parseRouting(row)
		if err != nil {
			if e, ok := err.(*types.Error); ok {
				return nil, e.WithGraph(row.Graph).WithNode(row.Node).WithRow(rowNum)
			}
			return nil, err
		}

		spec := &NodeSpec{
			Name:         row.Node,
			AgentType:    row.AgentType,
			InputFields:  splitList(row.InputFields),
			OutputFields: splitList(row.OutputField),
			Config:       parseContext(row.Context),
			Prompt:       row.Prompt,
			Routing:      routing,
			Row:          rowNum,
		}

		if _, seen := sheet.rows[row.Graph]; !seen {
			sheet.graphs = append(sheet.graphs, row.Graph)
		}
		sheet.rows[row.Graph] = append(sheet.rows[row.Graph], parsedRow{row: rowNum, spec: spec})
	}

	return sheet, nil
}

// parseRouting decides the routing variant for a row once, at parse time.
func parseRouting(row Row) (Routing, error) {
	hasEdge := row.Edge != ""
	hasConditional := row.SuccessNext != "" || row.FailureNext != ""

	if hasEdge && hasConditional {
		return Routing{}, types.NewError(types.ErrConflictingRouting,
			"row declares both a direct edge and success/failure routing")
	}

	switch {
	case hasEdge:
		if ref, ok := strings.CutPrefix(row.Edge, dynamicPrefix); ok {
			if ref == "" {
				return Routing{}, types.NewError(types.ErrMalformedRow,
					"dynamic edge declares an empty function reference")
			}
			return Routing{Kind: RoutingDynamic, FuncRef: ref}, nil
		}
		if row.Edge == Terminal {
			return Routing{Kind: RoutingNone}, nil
		}
		return Routing{Kind: RoutingDirect, Target: row.Edge}, nil

	case hasConditional:
		return Routing{
			Kind:      RoutingConditional,
			OnSuccess: splitTargets(row.SuccessNext),
			OnFailure: splitTargets(row.FailureNext),
		}, nil

	default:
		// Empty routing fields declare a terminal node.
		return Routing{Kind: RoutingNone}, nil
	}
}

// parseContext interprets the context column: JSON objects and arrays become
// structured payloads, anything else is carried as the raw string.
func parseContext(raw string) any {
	if raw == "" {
		return nil
	}
	trimmed := strings.TrimSpace(raw)
	if strings.HasPrefix(trimmed, "{") || strings.HasPrefix(trimmed, "[") {
		var parsed any
		if err := json.Unmarshal([]byte(trimmed), &parsed); err == nil {
			return parsed
		}
	}
	return raw
}

// splitList splits a pipe-delimited field list. Absent fields yield an
// empty list.
func splitList(raw string) []string {
	return splitOn(raw, "|")
}

// splitTargets splits a routing target list; comma and pipe separators both
// denote fan-out and may be mixed.
func splitTargets(raw string) []string {
	return splitOn(strings.ReplaceAll(raw, "|", ","), ",")
}

func splitOn(raw, sep string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, sep)
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func normalizeHeader(col string) string {
	name := strings.ToLower(strings.TrimSpace(col))
	name = strings.ReplaceAll(name, " ", "_")
	name = strings.ReplaceAll(name, "-", "_")
	return name
}
