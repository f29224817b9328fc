// Command sqllint checks that every inline SQL string constant starts with a
// "--sql <uuid>" marker line and that no marker is used twice. The markers
// are what log lines reference instead of the statement text, so a missing
// or duplicated one breaks query auditing.
package main

import (
	"flag"
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
)

var (
	sqlKeywordPattern = regexp.MustCompile(`(?i)\b(select|insert|update|delete|with)\b`)
	markerLinePattern = regexp.MustCompile(`^--sql ([0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12})$`)
)

type finding struct {
	file    string
	line    int
	name    string
	message string
}

func main() {
	flag.Parse()
	targets := flag.Args()
	if len(targets) == 0 {
		targets = []string{"."}
	}

	var findings []finding
	markers := make(map[string]string) // marker uuid -> first location

	for _, target := range targets {
		if err := walkTarget(target, &findings, markers); err != nil {
			fmt.Fprintf(os.Stderr, "sqllint: %v\n", err)
			os.Exit(1)
		}
	}

	if len(findings) > 0 {
		fmt.Fprintln(os.Stderr, "sqllint: SQL marker violations")
		for _, f := range findings {
			fmt.Fprintf(os.Stderr, "  %s:%d %s (%s)\n", f.file, f.line, f.message, f.name)
		}
		os.Exit(1)
	}
}

func walkTarget(target string, findings *[]finding, markers map[string]string) error {
	info, err := os.Stat(target)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		if filepath.Ext(target) == ".go" {
			return lintFile(target, findings, markers)
		}
		return nil
	}
	return filepath.WalkDir(target, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			name := d.Name()
			if strings.HasPrefix(name, ".") || strings.HasPrefix(name, "_") || name == "vendor" {
				return filepath.SkipDir
			}
			return nil
		}
		if filepath.Ext(path) != ".go" {
			return nil
		}
		return lintFile(path, findings, markers)
	})
}

func lintFile(path string, findings *[]finding, markers map[string]string) error {
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, path, nil, parser.ParseComments)
	if err != nil {
		return err
	}
	ast.Inspect(file, func(n ast.Node) bool {
		vs, ok := n.(*ast.ValueSpec)
		if !ok {
			return true
		}
		for _, value := range vs.Values {
			bl, ok := value.(*ast.BasicLit)
			if !ok || bl.Kind != token.STRING {
				continue
			}
			raw, err := unquote(bl.Value)
			if err != nil || !sqlKeywordPattern.MatchString(raw) {
				continue
			}
			pos := fset.Position(bl.Pos())
			where := fmt.Sprintf("%s:%d", path, pos.Line)

			m := markerLinePattern.FindStringSubmatch(firstLine(raw))
			if m == nil {
				*findings = append(*findings, finding{
					file:    path,
					line:    pos.Line,
					name:    specName(vs),
					message: "missing or invalid --sql <uuid> marker",
				})
				continue
			}
			if prev, seen := markers[m[1]]; seen {
				*findings = append(*findings, finding{
					file:    path,
					line:    pos.Line,
					name:    specName(vs),
					message: "marker already used at " + prev,
				})
				continue
			}
			markers[m[1]] = where
		}
		return true
	})
	return nil
}

func firstLine(s string) string {
	s = strings.TrimLeft(s, "\n\r \t")
	if idx := strings.IndexAny(s, "\n\r"); idx >= 0 {
		s = s[:idx]
	}
	return strings.TrimSpace(s)
}

func unquote(v string) (string, error) {
	if len(v) == 0 {
		return v, nil
	}
	if v[0] == '`' {
		return v[1 : len(v)-1], nil
	}
	return strconv.Unquote(v)
}

func specName(vs *ast.ValueSpec) string {
	parts := make([]string, 0, len(vs.Names))
	for _, ident := range vs.Names {
		if ident != nil {
			parts = append(parts, ident.Name)
		}
	}
	return strings.Join(parts, ",")
}
