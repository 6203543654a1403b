// Package services finds cross-service calls in source text: environment
// variables naming service addresses, address literals and subprocess spawns.
// Matching is line oriented and table driven; nothing here parses code.
package services

import (
	"bufio"
	"bytes"
	"regexp"
	"strconv"
	"strings"

	"github.com/DeusData/module-sentinel/internal/lang"
	"github.com/DeusData/module-sentinel/internal/model"
)

// Confidences of the three detection sources.
const (
	envConfidence     = 0.9
	addressConfidence = 0.8
	spawnConfidence   = 0.7
)

// DefaultProtocol is assumed when neither the name nor the port says otherwise.
const DefaultProtocol = "grpc"

// Call is one detected reference to another service.
type Call struct {
	Service  string
	Protocol string
	Line     int
	// Variable is the environment variable the address came from, if any.
	Variable string
	// Address is the literal the service was read from, if any.
	Address string
}

// envPatterns hold the environment lookup idioms per language. The first
// submatch is the variable name.
var envPatterns = map[lang.Language][]*regexp.Regexp{
	lang.Go: {
		regexp.MustCompile(`os\.(?:Getenv|LookupEnv)\(\s*"([A-Za-z0-9_]+)"`),
	},
	lang.Python: {
		regexp.MustCompile(`os\.(?:environ\.get|getenv)\(\s*["']([A-Za-z0-9_]+)["']`),
		regexp.MustCompile(`os\.environ\[\s*["']([A-Za-z0-9_]+)["']\s*\]`),
	},
	lang.JavaScript: jsEnv,
	lang.TypeScript: jsEnv,
	lang.TSX:        jsEnv,
	lang.Java:       jvmEnv,
	lang.Kotlin:     jvmEnv,
	lang.Scala: append([]*regexp.Regexp{
		regexp.MustCompile(`sys\.env(?:\.get)?\(\s*"([A-Za-z0-9_]+)"`),
	}, jvmEnv...),
	lang.CSharp: {
		regexp.MustCompile(`Environment\.GetEnvironmentVariable\(\s*"([A-Za-z0-9_]+)"`),
	},
	lang.C:   cEnv,
	lang.CPP: cEnv,
	lang.Rust: {
		regexp.MustCompile(`env::var(?:_os)?\(\s*"([A-Za-z0-9_]+)"`),
	},
	lang.PHP: {
		regexp.MustCompile(`getenv\(\s*['"]([A-Za-z0-9_]+)['"]`),
		regexp.MustCompile(`\$_(?:ENV|SERVER)\[\s*['"]([A-Za-z0-9_]+)['"]`),
	},
	lang.Lua: {
		regexp.MustCompile(`os\.getenv\(\s*["']([A-Za-z0-9_]+)["']`),
	},
}

var (
	jsEnv = []*regexp.Regexp{
		regexp.MustCompile(`process\.env\.([A-Za-z0-9_]+)`),
		regexp.MustCompile("process\\.env\\[\\s*[\"'`]([A-Za-z0-9_]+)[\"'`]\\s*\\]"),
	}
	jvmEnv = []*regexp.Regexp{
		regexp.MustCompile(`System\.getenv\(\s*"([A-Za-z0-9_]+)"`),
	}
	cEnv = []*regexp.Regexp{
		regexp.MustCompile(`\b(?:std::)?(?:secure_)?getenv\(\s*"([A-Za-z0-9_]+)"`),
	}
)

// nameRule turns an environment variable into a service name when it ends
// with suffix. Rules are tried in order; the first match wins.
type nameRule struct {
	suffix     string
	addService bool
}

var nameRules = []nameRule{
	{suffix: "_SERVICE_ADDR", addService: true},
	{suffix: "_SERVICE_HOST", addService: true},
	{suffix: "_SERVICE_URL", addService: true},
	{suffix: "_ADDR", addService: true},
	{suffix: "_HOST"},
	{suffix: "_URL"},
	{suffix: "_ENDPOINT"},
}

// infraNames are backing services that never get a "service" suffix.
var infraNames = map[string]bool{
	"redis":         true,
	"db":            true,
	"database":      true,
	"kafka":         true,
	"postgres":      true,
	"mysql":         true,
	"mongo":         true,
	"mongodb":       true,
	"rabbitmq":      true,
	"memcached":     true,
	"elasticsearch": true,
}

// ServiceName derives a service name from an environment variable, or
// returns "" when the variable does not look like a service address.
func ServiceName(variable string) string {
	upper := strings.ToUpper(variable)
	for _, r := range nameRules {
		if !strings.HasSuffix(upper, r.suffix) || len(upper) == len(r.suffix) {
			continue
		}
		base := strings.ReplaceAll(strings.ToLower(strings.TrimSuffix(upper, r.suffix)), "_", "")
		if r.addService && !infraNames[base] && !strings.HasSuffix(base, "service") {
			base += "service"
		}
		return base
	}
	return ""
}

// protocolKeywords are checked against the variable or address, in order.
var protocolKeywords = []struct {
	keyword  string
	protocol string
}{
	{"GRPC", "grpc"},
	{"HTTPS", "https"},
	{"HTTP", "http"},
	{"REST", "http"},
	{"API", "http"},
	{"WEB", "http"},
	{"REDIS", "redis"},
	{"KAFKA", "kafka"},
	{"AMQP", "amqp"},
	{"RABBIT", "amqp"},
	{"POSTGRES", "postgres"},
	{"MYSQL", "mysql"},
	{"MONGO", "mongodb"},
}

// wellKnownPorts maps default ports to protocols.
var wellKnownPorts = map[int]string{
	80:    "http",
	443:   "https",
	3000:  "http",
	8000:  "http",
	8080:  "http",
	6379:  "redis",
	5432:  "postgres",
	3306:  "mysql",
	27017: "mongodb",
	9092:  "kafka",
	5672:  "amqp",
	50051: "grpc",
}

// InferProtocol picks a protocol from keywords in name, then from port,
// and falls back to DefaultProtocol. A port of zero is unknown.
func InferProtocol(name string, port int) string {
	upper := strings.ToUpper(name)
	for _, k := range protocolKeywords {
		if strings.Contains(upper, k.keyword) {
			return k.protocol
		}
	}
	if p, ok := wellKnownPorts[port]; ok {
		return p
	}
	return DefaultProtocol
}

var portRe = regexp.MustCompile(`:(\d{2,5})\b`)

// portIn returns the first port-looking number in s, or 0.
func portIn(s string) int {
	m := portRe.FindStringSubmatch(s)
	if m == nil {
		return 0
	}
	p, _ := strconv.Atoi(m[1])
	return p
}

// addressPattern recognizes a direct address literal. host and port are
// submatch indexes; scheme, when positive, names the protocol.
type addressPattern struct {
	re     *regexp.Regexp
	scheme int
	host   int
	port   int
}

var addressPatterns = []addressPattern{
	{
		re:     regexp.MustCompile(`\b(redis|rediss|postgres|postgresql|mysql|mongodb(?:\+srv)?|amqps?|kafka)://(?:[^\s"'@/]+@)?([A-Za-z0-9.-]+)(?::(\d+))?`),
		scheme: 1, host: 2, port: 3,
	},
	{
		re:     regexp.MustCompile(`\b(https?)://([A-Za-z0-9.-]+)(?::(\d+))?`),
		scheme: 1, host: 2, port: 3,
	},
	{
		// Kubernetes service DNS or a bare name:port inside a string literal.
		re:   regexp.MustCompile("[\"'`]([a-z][a-z0-9-]*(?:\\.[a-z0-9-]+)*\\.svc(?:\\.cluster\\.local)?|[a-z][a-z0-9-]*):(\\d{2,5})[\"'`]"),
		host: 1, port: 2,
	},
}

// localHosts are addresses that never name another service.
var localHosts = map[string]bool{
	"localhost": true,
	"127.0.0.1": true,
	"0.0.0.0":   true,
	"host":      true,
}

var schemeProtocols = map[string]string{
	"rediss":      "redis",
	"postgresql":  "postgres",
	"mongodb+srv": "mongodb",
	"amqps":       "amqp",
}

// serviceFromHost reduces a host to its service name: the first label of
// cluster DNS names and single-label hosts, the full host otherwise.
func serviceFromHost(host string) string {
	host = strings.ToLower(strings.TrimSuffix(host, "."))
	if !strings.Contains(host, ".") || strings.Contains(host, ".svc") {
		if i := strings.IndexByte(host, '.'); i >= 0 {
			return host[:i]
		}
	}
	return host
}

// Scan reports the service calls found in content for language l. Comment
// lines are skipped.
func Scan(l lang.Language, content []byte) []Call {
	var comments []string
	if spec := lang.ForLanguage(l); spec != nil {
		comments = spec.CommentPrefixes
	}
	envs := envPatterns[l]

	var calls []Call
	sc := bufio.NewScanner(bytes.NewReader(content))
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	line := 0
	for sc.Scan() {
		line++
		text := sc.Text()
		if isComment(text, comments) {
			continue
		}
		seen := map[string]bool{}
		for _, re := range envs {
			for _, m := range re.FindAllStringSubmatchIndex(text, -1) {
				variable := text[m[2]:m[3]]
				svc := ServiceName(variable)
				if svc == "" || seen[svc] {
					continue
				}
				seen[svc] = true
				calls = append(calls, Call{
					Service:  svc,
					Protocol: InferProtocol(variable, portIn(text[m[1]:])),
					Line:     line,
					Variable: variable,
				})
			}
		}
		for _, p := range addressPatterns {
			for _, m := range p.re.FindAllStringSubmatch(text, -1) {
				host := m[p.host]
				if localHosts[strings.ToLower(host)] {
					continue
				}
				svc := serviceFromHost(host)
				if svc == "" || seen[svc] {
					continue
				}
				seen[svc] = true
				port, _ := strconv.Atoi(m[p.port])
				protocol := ""
				if p.scheme > 0 {
					scheme := strings.ToLower(m[p.scheme])
					protocol = scheme
					if alias, ok := schemeProtocols[scheme]; ok {
						protocol = alias
					}
				}
				if protocol == "" {
					protocol = InferProtocol(host, port)
				}
				calls = append(calls, Call{
					Service:  svc,
					Protocol: protocol,
					Line:     line,
					Address:  m[0],
				})
			}
		}
	}
	return calls
}

func isComment(line string, prefixes []string) bool {
	trimmed := strings.TrimSpace(line)
	for _, p := range prefixes {
		if strings.HasPrefix(trimmed, p) {
			return true
		}
	}
	return false
}

// Detect scans content and returns cross-language invokes and spawns
// relationships. Each one starts at the innermost callable symbol spanning
// its line, or at filePath when none does.
func Detect(filePath string, l lang.Language, content []byte, symbols []model.Symbol) []model.Relationship {
	var rels []model.Relationship
	for _, c := range Scan(l, content) {
		meta := map[string]any{"protocol": c.Protocol}
		conf := addressConfidence
		if c.Variable != "" {
			conf = envConfidence
			meta["envVar"] = c.Variable
			meta["source"] = "env"
		} else {
			meta["address"] = c.Address
			meta["source"] = "address"
		}
		rels = append(rels, model.Relationship{
			FromName:      enclosing(symbols, c.Line, filePath),
			ToName:        c.Service,
			Type:          model.RelInvokes,
			Confidence:    conf,
			LineNumber:    c.Line,
			CrossLanguage: true,
			Metadata:      meta,
		})
	}
	for _, s := range ScanSpawns(l, content) {
		meta := map[string]any{
			"command":        s.Command,
			"targetLanguage": s.TargetLanguage,
		}
		if s.Script != "" {
			meta["script"] = s.Script
		}
		rels = append(rels, model.Relationship{
			FromName:      enclosing(symbols, s.Line, filePath),
			ToName:        s.Target(),
			Type:          model.RelSpawns,
			Confidence:    spawnConfidence,
			LineNumber:    s.Line,
			CrossLanguage: s.TargetLanguage != string(l) && s.TargetLanguage != unknownLanguage,
			Metadata:      meta,
		})
	}
	return rels
}

// enclosing returns the qualified name of the narrowest callable whose
// line span holds line.
func enclosing(symbols []model.Symbol, line int, fallback string) string {
	best := fallback
	bestSpan := -1
	for i := range symbols {
		s := &symbols[i]
		if !s.Kind.IsCallable() || s.Line > line {
			continue
		}
		end := s.EndLine
		if end < s.Line {
			end = s.Line
		}
		if line > end {
			continue
		}
		if span := end - s.Line; bestSpan < 0 || span < bestSpan {
			best, bestSpan = s.QualifiedName, span
		}
	}
	return best
}
