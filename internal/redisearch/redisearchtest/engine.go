// Package redisearchtest 提供内存版 RediSearch 引擎，用于单元测试。
package redisearchtest

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// ReplyError 模拟引擎返回的错误回复
type ReplyError string

func (e ReplyError) Error() string { return string(e) }

// RedisError 使其满足 redis.Error
func (ReplyError) RedisError() {}

type index struct {
	name     string
	prefixes []string
	schema   []string
	synonyms map[string][]string
}

type suggestion struct {
	term    string
	score   float64
	payload string
}

// Engine 内存引擎，实现 redisearch.Doer
type Engine struct {
	mu       sync.Mutex
	hashes   map[string]map[string]string
	strings  map[string]string
	ttls     map[string]time.Duration
	indexes  map[string]*index
	suggests map[string][]suggestion
	failures map[string][]error
	calls    [][]interface{}
	modules  []string
}

// New 创建空引擎
func New() *Engine {
	return &Engine{
		hashes:   make(map[string]map[string]string),
		strings:  make(map[string]string),
		ttls:     make(map[string]time.Duration),
		indexes:  make(map[string]*index),
		suggests: make(map[string][]suggestion),
		failures: make(map[string][]error),
		modules:  []string{"search"},
	}
}

// FailNext 让下一次指定命令返回 err
func (e *Engine) FailNext(command string, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	command = strings.ToUpper(command)
	e.failures[command] = append(e.failures[command], err)
}

// SetModules 设置 MODULE LIST 返回的模块
func (e *Engine) SetModules(names ...string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.modules = names
}

// Calls 返回全部已执行命令
func (e *Engine) Calls() [][]interface{} {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([][]interface{}, len(e.calls))
	copy(out, e.calls)
	return out
}

// Commands 返回已执行命令名
func (e *Engine) Commands() []string {
	var names []string
	for _, c := range e.Calls() {
		names = append(names, strings.ToUpper(fmt.Sprint(c[0])))
	}
	return names
}

// CountCommand 统计某命令执行次数
func (e *Engine) CountCommand(name string) int {
	n := 0
	for _, c := range e.Commands() {
		if c == strings.ToUpper(name) {
			n++
		}
	}
	return n
}

// TTL 返回字符串键最近一次设置的过期时间，未设置时为 0
func (e *Engine) TTL(key string) time.Duration {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.ttls[key]
}

// Hash 返回指定键的哈希
func (e *Engine) Hash(key string) map[string]string {
	e.mu.Lock()
	defer e.mu.Unlock()
	h, ok := e.hashes[key]
	if !ok {
		return nil
	}
	out := make(map[string]string, len(h))
	for k, v := range h {
		out[k] = v
	}
	return out
}

// Keys 返回以 prefix 开头的哈希键
func (e *Engine) Keys(prefix string) []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	var keys []string
	for k := range e.hashes {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}

// Schema 返回索引字段名，索引不存在时返回 nil
func (e *Engine) Schema(name string) []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	if idx, ok := e.indexes[name]; ok {
		return append([]string(nil), idx.schema...)
	}
	return nil
}

// Suggestions 返回字典中的全部条目
func (e *Engine) Suggestions(key string) []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	var terms []string
	for _, s := range e.suggests[key] {
		terms = append(terms, s.term+"|"+s.payload)
	}
	return terms
}

// Do 实现 redisearch.Doer
func (e *Engine) Do(ctx context.Context, args ...interface{}) *redis.Cmd {
	cmd := redis.NewCmd(ctx, args...)

	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls = append(e.calls, args)

	if len(args) == 0 {
		cmd.SetErr(ReplyError("ERR empty command"))
		return cmd
	}
	name := strings.ToUpper(str(args[0]))
	if q := e.failures[name]; len(q) > 0 {
		e.failures[name] = q[1:]
		cmd.SetErr(q[0])
		return cmd
	}

	val, err := e.exec(name, args[1:])
	if err != nil {
		cmd.SetErr(err)
	} else {
		cmd.SetVal(val)
	}
	return cmd
}

func (e *Engine) exec(name string, args []interface{}) (interface{}, error) {
	switch name {
	case "PING":
		return "PONG", nil
	case "SAVE":
		return "OK", nil
	case "MODULE":
		var out []interface{}
		for _, m := range e.modules {
			out = append(out, []interface{}{"name", m, "ver", int64(20809)})
		}
		return out, nil
	case "FT.CREATE":
		return e.create(args)
	case "FT.DROPINDEX":
		return e.drop(args)
	case "FT.INFO":
		return e.info(args)
	case "FT.SEARCH":
		return e.search(args)
	case "FT.SUGADD":
		return e.sugAdd(args)
	case "FT.SUGDEL":
		return e.sugDel(args)
	case "FT.SUGGET":
		return e.sugGet(args)
	case "FT.SYNUPDATE":
		return e.synUpdate(args)
	case "FT.SYNDUMP":
		return e.synDump(args)
	case "HSET":
		key := str(args[0])
		h, ok := e.hashes[key]
		if !ok {
			h = make(map[string]string)
			e.hashes[key] = h
		}
		added := int64(0)
		for i := 1; i+1 < len(args); i += 2 {
			if _, exists := h[str(args[i])]; !exists {
				added++
			}
			h[str(args[i])] = str(args[i+1])
		}
		return added, nil
	case "HGETALL":
		var out []interface{}
		h := e.hashes[str(args[0])]
		keys := make([]string, 0, len(h))
		for k := range h {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			out = append(out, k, h[k])
		}
		return out, nil
	case "EXISTS":
		n := int64(0)
		for _, a := range args {
			if _, ok := e.hashes[str(a)]; ok {
				n++
			} else if _, ok := e.strings[str(a)]; ok {
				n++
			}
		}
		return n, nil
	case "DEL":
		n := int64(0)
		for _, a := range args {
			key := str(a)
			if _, ok := e.hashes[key]; ok {
				delete(e.hashes, key)
				n++
			}
			if _, ok := e.strings[key]; ok {
				delete(e.strings, key)
				delete(e.ttls, key)
				n++
			}
		}
		return n, nil
	case "SET":
		key, value := str(args[0]), str(args[1])
		var ttl time.Duration
		for i, a := range args[2:] {
			switch strings.ToUpper(str(a)) {
			case "NX":
				if _, ok := e.strings[key]; ok {
					return nil, redis.Nil
				}
			case "PX":
				if i+3 < len(args) {
					ttl = time.Duration(num(args[i+3])) * time.Millisecond
				}
			}
		}
		e.strings[key] = value
		delete(e.ttls, key)
		if ttl > 0 {
			e.ttls[key] = ttl
		}
		return "OK", nil
	case "GET":
		v, ok := e.strings[str(args[0])]
		if !ok {
			return nil, redis.Nil
		}
		return v, nil
	case "EVAL":
		// 仅支持比较后删除与比较后续期两种脚本：KEYS[1] 的值等于 ARGV[1] 时生效
		if len(args) < 4 {
			return nil, ReplyError("ERR wrong number of arguments for 'eval'")
		}
		script, key, token := str(args[0]), str(args[2]), str(args[3])
		if e.strings[key] != token {
			return int64(0), nil
		}
		if strings.Contains(script, "PEXPIRE") {
			if len(args) < 5 {
				return nil, ReplyError("ERR missing expire argument")
			}
			e.ttls[key] = time.Duration(num(args[4])) * time.Millisecond
			return int64(1), nil
		}
		delete(e.strings, key)
		delete(e.ttls, key)
		return int64(1), nil
	}
	return nil, ReplyError(fmt.Sprintf("ERR unknown command '%s'", name))
}

func (e *Engine) create(args []interface{}) (interface{}, error) {
	name := str(args[0])
	if _, ok := e.indexes[name]; ok {
		return nil, ReplyError("Index already exists")
	}
	idx := &index{name: name, synonyms: make(map[string][]string)}
	for i := 1; i < len(args); i++ {
		switch strings.ToUpper(str(args[i])) {
		case "PREFIX":
			n, _ := strconv.Atoi(str(args[i+1]))
			for j := 0; j < n; j++ {
				idx.prefixes = append(idx.prefixes, str(args[i+2+j]))
			}
			i += 1 + n
		case "SCHEMA":
			for j := i + 1; j < len(args); j++ {
				a := strings.ToUpper(str(args[j]))
				switch a {
				case "TEXT", "NUMERIC", "TAG", "GEO", "SORTABLE":
				case "WEIGHT", "SEPARATOR":
					j++
				default:
					idx.schema = append(idx.schema, str(args[j]))
				}
			}
			i = len(args)
		}
	}
	e.indexes[name] = idx
	return "OK", nil
}

func (e *Engine) drop(args []interface{}) (interface{}, error) {
	name := str(args[0])
	idx, ok := e.indexes[name]
	if !ok {
		return nil, ReplyError("Unknown Index name")
	}
	if len(args) > 1 && strings.EqualFold(str(args[1]), "DD") {
		for _, key := range e.indexKeys(idx) {
			delete(e.hashes, key)
		}
	}
	delete(e.indexes, name)
	return "OK", nil
}

func (e *Engine) info(args []interface{}) (interface{}, error) {
	idx, ok := e.indexes[str(args[0])]
	if !ok {
		return nil, ReplyError("Unknown Index name")
	}
	var attrs []interface{}
	for _, f := range idx.schema {
		attrs = append(attrs, []interface{}{"identifier", f, "attribute", f})
	}
	return []interface{}{
		"index_name", idx.name,
		"attributes", attrs,
		"num_docs", strconv.Itoa(len(e.indexKeys(idx))),
		"num_terms", "0",
		"num_records", "0",
	}, nil
}

func (e *Engine) indexKeys(idx *index) []string {
	var keys []string
	for k := range e.hashes {
		for _, p := range idx.prefixes {
			if strings.HasPrefix(k, p) {
				keys = append(keys, k)
				break
			}
		}
	}
	sort.Strings(keys)
	return keys
}

func (e *Engine) search(args []interface{}) (interface{}, error) {
	idx, ok := e.indexes[str(args[0])]
	if !ok {
		return nil, ReplyError("Unknown Index name")
	}
	query := strings.ToLower(strings.TrimSpace(str(args[1])))
	noContent := false
	offset, limit := 0, 10
	for i := 2; i < len(args); i++ {
		switch strings.ToUpper(str(args[i])) {
		case "NOCONTENT":
			noContent = true
		case "LANGUAGE":
			i++
		case "RETURN":
			n, _ := strconv.Atoi(str(args[i+1]))
			i += 1 + n
		case "LIMIT":
			offset, _ = strconv.Atoi(str(args[i+1]))
			limit, _ = strconv.Atoi(str(args[i+2]))
			i += 2
		}
	}

	type hit struct {
		key   string
		score float64
	}
	var hits []hit
	for _, key := range e.indexKeys(idx) {
		h := e.hashes[key]
		if !matches(h, query) {
			continue
		}
		score, _ := strconv.ParseFloat(h["documentScore"], 64)
		hits = append(hits, hit{key: key, score: score})
	}
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].score != hits[j].score {
			return hits[i].score > hits[j].score
		}
		return hits[i].key > hits[j].key
	})

	out := []interface{}{int64(len(hits))}
	for i := offset; i < len(hits) && i < offset+limit; i++ {
		out = append(out, hits[i].key)
		if !noContent {
			var fields []interface{}
			for k, v := range e.hashes[hits[i].key] {
				fields = append(fields, k, v)
			}
			out = append(out, fields)
		}
	}
	return out, nil
}

func matches(h map[string]string, query string) bool {
	if query == "" || query == "*" {
		return true
	}
	var sb strings.Builder
	for k, v := range h {
		if k == "documentScore" || k == "documentLanguage" {
			continue
		}
		sb.WriteString(strings.ToLower(v))
		sb.WriteByte(' ')
	}
	haystack := sb.String()
	for _, term := range strings.Fields(query) {
		if !strings.Contains(haystack, term) {
			return false
		}
	}
	return true
}

func (e *Engine) sugAdd(args []interface{}) (interface{}, error) {
	key, term := str(args[0]), str(args[1])
	score, _ := strconv.ParseFloat(str(args[2]), 64)
	payload := ""
	for i := 3; i < len(args); i++ {
		if strings.EqualFold(str(args[i]), "PAYLOAD") && i+1 < len(args) {
			payload = str(args[i+1])
		}
	}
	list := e.suggests[key]
	for i := range list {
		if list[i].term == term {
			list[i].score = score
			list[i].payload = payload
			return int64(len(list)), nil
		}
	}
	e.suggests[key] = append(list, suggestion{term: term, score: score, payload: payload})
	return int64(len(e.suggests[key])), nil
}

func (e *Engine) sugDel(args []interface{}) (interface{}, error) {
	key, term := str(args[0]), str(args[1])
	list := e.suggests[key]
	for i := range list {
		if list[i].term == term {
			e.suggests[key] = append(list[:i], list[i+1:]...)
			return int64(1), nil
		}
	}
	return int64(0), nil
}

func (e *Engine) sugGet(args []interface{}) (interface{}, error) {
	key, prefix := str(args[0]), strings.ToLower(str(args[1]))
	max := 5
	for i := 2; i < len(args); i++ {
		if strings.EqualFold(str(args[i]), "MAX") && i+1 < len(args) {
			max, _ = strconv.Atoi(str(args[i+1]))
		}
	}
	var found []suggestion
	for _, s := range e.suggests[key] {
		if strings.HasPrefix(strings.ToLower(s.term), prefix) {
			found = append(found, s)
		}
	}
	sort.SliceStable(found, func(i, j int) bool { return found[i].score > found[j].score })
	var out []interface{}
	for i, s := range found {
		if i >= max {
			break
		}
		var payload interface{}
		if s.payload != "" {
			payload = s.payload
		}
		out = append(out, s.term, strconv.FormatFloat(s.score, 'f', -1, 64), payload)
	}
	return out, nil
}

func (e *Engine) synUpdate(args []interface{}) (interface{}, error) {
	idx, ok := e.indexes[str(args[0])]
	if !ok {
		return nil, ReplyError("Unknown Index name")
	}
	group := str(args[1])
	for _, t := range args[2:] {
		term := strings.ToLower(str(t))
		idx.synonyms[term] = append(idx.synonyms[term], group)
	}
	return "OK", nil
}

func (e *Engine) synDump(args []interface{}) (interface{}, error) {
	idx, ok := e.indexes[str(args[0])]
	if !ok {
		return nil, ReplyError("Unknown Index name")
	}
	terms := make([]string, 0, len(idx.synonyms))
	for t := range idx.synonyms {
		terms = append(terms, t)
	}
	sort.Strings(terms)
	var out []interface{}
	for _, t := range terms {
		var groups []interface{}
		for _, g := range idx.synonyms[t] {
			groups = append(groups, g)
		}
		out = append(out, t, groups)
	}
	return out, nil
}

func str(v interface{}) string {
	switch val := v.(type) {
	case string:
		return val
	case []byte:
		return string(val)
	default:
		return fmt.Sprint(val)
	}
}

func num(v interface{}) int64 {
	n, _ := strconv.ParseInt(str(v), 10, 64)
	return n
}
