package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	kdl "github.com/sblinch/kdl-go"
	"github.com/sblinch/kdl-go/document"
)

// DefaultFileName is the config file the CLI looks for when --config is
// not given, mirroring the teacher's ".lci.kdl" convention.
const DefaultFileName = ".sourcesim.kdl"

// Load reads a KDL config file at path, overlaying it onto New(root)'s
// defaults. A missing file is not an error: callers get pure defaults.
func Load(path, root string) (*Config, error) {
	cfg := New(root)

	content, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	doc, err := kdl.Parse(strings.NewReader(string(content)))
	if err != nil {
		return nil, fmt.Errorf("failed to parse KDL config %s: %w", path, err)
	}

	for _, n := range doc.Nodes {
		switch nodeName(n) {
		case "project":
			for _, cn := range n.Children {
				assignSimpleString(cn, "root", func(v string) {
					if filepath.IsAbs(v) {
						cfg.Project.Root = v
					} else {
						cfg.Project.Root = filepath.Join(filepath.Dir(path), v)
					}
				})
			}
		case "similarity":
			for _, cn := range n.Children {
				switch nodeName(cn) {
				case "k":
					if v, ok := firstIntArg(cn); ok {
						cfg.Similarity.K = v
					}
				case "bands":
					if v, ok := firstIntArg(cn); ok {
						cfg.Similarity.Bands = v
					}
				case "rows":
					if v, ok := firstIntArg(cn); ok {
						cfg.Similarity.Rows = v
					}
				case "seed":
					if v, ok := firstIntArg(cn); ok {
						cfg.Similarity.Seed = int64(v)
					}
				case "similarity-floor":
					if v, ok := firstFloatArg(cn); ok {
						cfg.Similarity.SimilarityFloor = v
					}
				case "bucket-cap":
					if v, ok := firstIntArg(cn); ok {
						cfg.Similarity.BucketCap = v
					}
				}
			}
		case "store":
			for _, cn := range n.Children {
				assignSimpleString(cn, "kind", func(v string) { cfg.Store.Kind = v })
				assignSimpleString(cn, "db", func(v string) { cfg.Store.DB = v })
			}
		case "walk":
			for _, cn := range n.Children {
				switch nodeName(cn) {
				case "include":
					if v := collectStringArgs(cn); len(v) > 0 {
						cfg.Walk.Include = v
					}
				case "exclude":
					if v := collectStringArgs(cn); len(v) > 0 {
						cfg.Walk.Exclude = v
					}
				case "max-file-size":
					if v, ok := firstIntArg(cn); ok {
						cfg.Walk.MaxFileSize = int64(v)
					}
				case "parallel-workers":
					if v, ok := firstIntArg(cn); ok {
						cfg.Walk.ParallelWorkers = v
					}
				}
			}
		}
	}

	if cfg.Similarity.Bands*cfg.Similarity.Rows != cfg.Similarity.K {
		return nil, fmt.Errorf("invalid similarity config: bands(%d) * rows(%d) != k(%d)",
			cfg.Similarity.Bands, cfg.Similarity.Rows, cfg.Similarity.K)
	}

	return cfg, nil
}

func nodeName(n *document.Node) string {
	if n == nil || n.Name == nil {
		return ""
	}
	return n.Name.NodeNameString()
}

func firstIntArg(n *document.Node) (int, bool) {
	if len(n.Arguments) == 0 {
		return 0, false
	}
	switch v := n.Arguments[0].Value.(type) {
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	default:
		return 0, false
	}
}

func firstFloatArg(n *document.Node) (float64, bool) {
	if len(n.Arguments) == 0 {
		return 0, false
	}
	switch v := n.Arguments[0].Value.(type) {
	case float64:
		return v, true
	case int64:
		return float64(v), true
	default:
		return 0, false
	}
}

func firstStringArg(n *document.Node) (string, bool) {
	if len(n.Arguments) == 0 {
		return "", false
	}
	if s, ok := n.Arguments[0].Value.(string); ok {
		return s, true
	}
	return "", false
}

func collectStringArgs(n *document.Node) []string {
	if n == nil {
		return nil
	}
	out := make([]string, 0, len(n.Arguments))
	for _, a := range n.Arguments {
		if s, ok := a.Value.(string); ok {
			out = append(out, s)
		}
	}
	if len(out) == 0 && len(n.Children) > 0 {
		out = make([]string, 0, len(n.Children))
		for _, child := range n.Children {
			if s, ok := firstStringArg(child); ok {
				out = append(out, s)
			} else if child.Name != nil {
				if s, ok := child.Name.Value.(string); ok {
					out = append(out, s)
				}
			}
		}
	}
	return out
}

func assignSimpleString(n *document.Node, target string, set func(string)) {
	if nodeName(n) == target {
		if s, ok := firstStringArg(n); ok {
			set(s)
		}
	}
}
