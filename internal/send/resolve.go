package send

import (
	"github.com/forgehttp/forge/internal/request"
	"github.com/forgehttp/forge/internal/vars"
)

// ResolveRequest returns a copy of req with placeholders substituted for
// sending: URL, enabled header and param rows, auth credentials and textual
// bodies. Unknown placeholders stay literal. req itself is not modified.
func ResolveRequest(r *vars.Resolver, req *request.Request) *request.Request {
	out := req.Clone()
	out.URL = r.ResolveForSend(out.URL)
	resolveRows(r, out.Headers)
	resolveRows(r, out.Params)

	auth := &out.Auth
	auth.Token = r.ResolveForSend(auth.Token)
	auth.Username = r.ResolveForSend(auth.Username)
	auth.Password = r.ResolveForSend(auth.Password)
	auth.KeyName = r.ResolveForSend(auth.KeyName)
	auth.KeyValue = r.ResolveForSend(auth.KeyValue)

	switch out.Body.Kind {
	case request.BodyText, request.BodyJSON:
		out.Body.Text = r.ResolveForSend(out.Body.Text)
	case request.BodyForm:
		resolveRows(r, out.Body.Form)
	}
	return out
}

func resolveRows(r *vars.Resolver, rows []request.KV) {
	for i := range rows {
		if !rows[i].Enabled {
			continue
		}
		rows[i].Key = r.ResolveForSend(rows[i].Key)
		rows[i].Value = r.ResolveForSend(rows[i].Value)
	}
}

// unresolvedNames collects names no layer could satisfy across everything
// ResolveRequest touches.
func unresolvedNames(r *vars.Resolver, req *request.Request) []string {
	var (
		names []string
		seen  = make(map[string]struct{})
	)
	add := func(s string) {
		for _, name := range r.Resolve(s).Unresolved() {
			if _, ok := seen[name]; ok {
				continue
			}
			seen[name] = struct{}{}
			names = append(names, name)
		}
	}
	add(req.URL)
	for _, rows := range [][]request.KV{req.Headers, req.Params} {
		for _, kv := range rows {
			if kv.Enabled {
				add(kv.Key)
				add(kv.Value)
			}
		}
	}
	add(req.Auth.Token)
	add(req.Auth.Username)
	add(req.Auth.Password)
	add(req.Auth.KeyName)
	add(req.Auth.KeyValue)
	switch req.Body.Kind {
	case request.BodyText, request.BodyJSON:
		add(req.Body.Text)
	case request.BodyForm:
		for _, kv := range req.Body.Form {
			if kv.Enabled {
				add(kv.Key)
				add(kv.Value)
			}
		}
	}
	return names
}
