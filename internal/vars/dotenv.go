package vars

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/forgehttp/forge/internal/errdef"
)

const (
	dotEnvDefaultName = "default"
	// a comment line carrying this marker flags the next assignment as secret
	dotEnvSecretMarker = "@secret"
)

func IsDotEnvPath(path string) bool {
	base := strings.ToLower(filepath.Base(path))
	if strings.HasSuffix(base, ".json") || strings.HasSuffix(base, ".toml") {
		return false
	}
	return base == ".env" || strings.HasPrefix(base, ".env.") || strings.HasSuffix(base, ".env")
}

// LoadDotEnv reads a dotenv file into an environment. Variables keep file
// order, and a "workspace" key (if any) names the environment.
func LoadDotEnv(path string) (env *Environment, err error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errdef.Wrap(errdef.CodeFilesystem, err, "open env file %s", path)
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil && err == nil {
			err = errdef.Wrap(errdef.CodeFilesystem, closeErr, "close env file %s", path)
		}
	}()
	return ParseDotEnv(f, path)
}

func ParseDotEnv(r io.Reader, path string) (*Environment, error) {
	p := &dotEnvParser{path: path, values: make(map[string]string)}
	if err := p.run(r); err != nil {
		return nil, err
	}

	env := NewEnvironment(p.environmentName())
	for _, key := range p.order {
		if isWorkspaceKey(key) {
			continue
		}
		typ := VarText
		if _, ok := p.secret[key]; ok {
			typ = VarSecret
		}
		env.Variables = append(env.Variables, Variable{
			Key:     key,
			Value:   p.values[key],
			Type:    typ,
			Enabled: true,
		})
	}
	return env, nil
}

type dotEnvParser struct {
	path          string
	line          int
	values        map[string]string
	order         []string
	secret        map[string]struct{}
	pendingSecret bool
	workspaceSeen bool
}

func (p *dotEnvParser) run(r io.Reader) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		p.line++
		if err := p.consume(strings.TrimSpace(scanner.Text())); err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil {
		return errdef.Wrap(errdef.CodeFilesystem, err, "read env file %s", p.path)
	}
	return nil
}

func (p *dotEnvParser) consume(line string) error {
	if line == "" {
		return nil
	}
	if line[0] == '#' || line[0] == ';' {
		if strings.Contains(line, dotEnvSecretMarker) {
			p.pendingSecret = true
		}
		return nil
	}

	key, raw, err := p.assignment(line)
	if err != nil {
		return err
	}
	value, literal, err := p.value(raw)
	if err != nil {
		return err
	}
	if !literal {
		// single-quoted values stay literal, everything else may reference
		// keys defined above or the process environment
		if value, err = p.expand(value); err != nil {
			return err
		}
	}

	if isWorkspaceKey(key) {
		if p.workspaceSeen {
			return p.errorf("workspace defined multiple times")
		}
		p.workspaceSeen = true
	}
	if _, exists := p.values[key]; !exists {
		p.order = append(p.order, key)
	}
	p.values[key] = value
	if p.pendingSecret {
		if p.secret == nil {
			p.secret = make(map[string]struct{})
		}
		p.secret[key] = struct{}{}
		p.pendingSecret = false
	}
	return nil
}

func (p *dotEnvParser) errorf(format string, args ...any) error {
	return errdef.New(errdef.CodeParse, "%s:%d: %s", p.path, p.line, fmt.Sprintf(format, args...))
}

func (p *dotEnvParser) assignment(line string) (string, string, error) {
	lower := strings.ToLower(line)
	if strings.HasPrefix(lower, "export ") || strings.HasPrefix(lower, "export\t") {
		line = strings.TrimSpace(line[len("export"):])
	}
	idx := strings.IndexByte(line, '=')
	if idx < 0 {
		return "", "", p.errorf("expected KEY=value")
	}
	key := strings.TrimSpace(line[:idx])
	if key == "" {
		return "", "", p.errorf("missing key")
	}
	return key, line[idx+1:], nil
}

// value returns the unquoted value and whether it must be kept literal.
func (p *dotEnvParser) value(raw string) (string, bool, error) {
	raw = strings.TrimLeft(raw, " \t")
	if raw == "" {
		return "", false, nil
	}
	switch raw[0] {
	case '"':
		v, err := p.quoted(raw, '"')
		return v, false, err
	case '\'':
		v, err := p.quoted(raw, '\'')
		return v, true, err
	default:
		return stripInlineComment(raw), false, nil
	}
}

func (p *dotEnvParser) quoted(input string, quote byte) (string, error) {
	var b strings.Builder
	for i := 1; i < len(input); i++ {
		ch := input[i]
		if ch == '\\' {
			if i+1 >= len(input) {
				return "", p.errorf("unfinished escape")
			}
			i++
			if quote == '"' {
				b.WriteByte(unescapeDouble(input[i]))
			} else {
				b.WriteByte(input[i])
			}
			continue
		}
		if ch != quote {
			b.WriteByte(ch)
			continue
		}
		rest := strings.TrimSpace(input[i+1:])
		if rest != "" && rest[0] != '#' && rest[0] != ';' {
			return "", p.errorf("unexpected content after quoted value")
		}
		return b.String(), nil
	}
	return "", p.errorf("unterminated quoted value")
}

func (p *dotEnvParser) expand(value string) (string, error) {
	var b strings.Builder
	for i := 0; i < len(value); i++ {
		ch := value[i]
		switch {
		case ch == '\\' && i+1 < len(value) && value[i+1] == '$':
			b.WriteByte('$')
			i++
		case ch != '$' || i+1 >= len(value):
			b.WriteByte(ch)
		case value[i+1] == '{':
			end := strings.IndexByte(value[i+2:], '}')
			if end < 0 {
				return "", p.errorf("missing closing brace for ${")
			}
			end += i + 2
			name := strings.TrimSpace(value[i+2 : end])
			if name == "" {
				return "", p.errorf("empty variable name")
			}
			ref, err := p.reference(name)
			if err != nil {
				return "", err
			}
			b.WriteString(ref)
			i = end
		case isDotEnvNameChar(value[i+1]):
			j := i + 1
			for j < len(value) && isDotEnvNameChar(value[j]) {
				j++
			}
			ref, err := p.reference(value[i+1 : j])
			if err != nil {
				return "", err
			}
			b.WriteString(ref)
			i = j - 1
		default:
			b.WriteByte(ch)
		}
	}
	return b.String(), nil
}

func (p *dotEnvParser) reference(name string) (string, error) {
	if value, ok := p.values[name]; ok {
		return value, nil
	}
	if value, ok := os.LookupEnv(name); ok {
		return value, nil
	}
	return "", p.errorf("variable %q is not defined", name)
}

func (p *dotEnvParser) environmentName() string {
	for key, value := range p.values {
		if isWorkspaceKey(key) {
			if name := strings.TrimSpace(value); name != "" {
				return name
			}
		}
	}

	base := filepath.Base(p.path)
	lower := strings.ToLower(base)
	switch {
	case lower == ".env", base == "" || base == ".":
		return dotEnvDefaultName
	case strings.HasPrefix(lower, ".env.") && len(base) > len(".env."):
		return base[len(".env."):]
	case strings.HasSuffix(lower, ".env") && len(base) > len(".env"):
		return base[:len(base)-len(".env")]
	}
	if stem := strings.TrimSuffix(base, filepath.Ext(base)); stem != "" {
		return stem
	}
	return dotEnvDefaultName
}

func stripInlineComment(value string) string {
	afterSpace := false
	for i := 0; i < len(value); i++ {
		switch value[i] {
		case ' ', '\t':
			afterSpace = true
		case '#', ';':
			if i == 0 || afterSpace {
				return strings.TrimSpace(value[:i])
			}
			afterSpace = false
		default:
			afterSpace = false
		}
	}
	return strings.TrimSpace(value)
}

func isDotEnvNameChar(ch byte) bool {
	return ch == '_' || (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z') || (ch >= '0' && ch <= '9')
}

func unescapeDouble(ch byte) byte {
	switch ch {
	case 'n':
		return '\n'
	case 'r':
		return '\r'
	case 't':
		return '\t'
	case '0':
		return 0
	case 'b':
		return '\b'
	case 'f':
		return '\f'
	default:
		return ch
	}
}

func isWorkspaceKey(key string) bool {
	return strings.EqualFold(strings.TrimSpace(key), "workspace")
}
