package h2headers

import (
	"net/http"
	"net/textproto"
	"strconv"
	"strings"

	"github.com/gospider007/tools"
	"golang.org/x/net/http/httpguts"
	"golang.org/x/net/http2/hpack"
)

func validPseudoPath(v string) bool {
	return (len(v) > 0 && v[0] == '/') || v == "*"
}

func actualContentLength(req *http.Request) int64 {
	if req.Body == nil || req.Body == http.NoBody {
		return 0
	}
	if req.ContentLength != 0 {
		return req.ContentLength
	}
	return -1
}

// RequestFromHTTP builds a Request from a net/http request: punycoded
// authority, hop-by-hop headers dropped, cookies split into one field per
// pair, names lower-cased, content-length synthesized when the body size is
// known. orderHeaders optionally fixes the regular-header order and may be
// nil.
func RequestFromHTTP(req *http.Request, orderHeaders []interface {
	Key() string
	Val() any
}) (*Request, error) {
	host := req.Host
	if host == "" {
		host = req.URL.Host
	}
	host, err := httpguts.PunycodeHostPort(host)
	if err != nil {
		return nil, err
	}
	var path string
	if req.Method != http.MethodConnect {
		path = req.URL.RequestURI()
		if !validPseudoPath(path) {
			path = strings.TrimPrefix(path, req.URL.Scheme+"://"+host)
		}
	}
	pairs := [][2]string{}
	f := func(name, value string) {
		pairs = append(pairs, [2]string{strings.ToLower(name), value})
	}
	for k, vv := range req.Header {
		switch strings.ToLower(k) {
		case "host", "content-length", "connection", "proxy-connection", "transfer-encoding", "upgrade", "keep-alive":
		case "cookie":
			for _, v := range vv {
				for _, c := range strings.Split(v, "; ") {
					f("cookie", c)
				}
			}
		default:
			for _, v := range vv {
				f(k, v)
			}
		}
	}
	if contentLength, _ := tools.GetContentLength(req); contentLength >= 0 {
		f("content-length", strconv.FormatInt(contentLength, 10))
	}
	var headers []hpack.HeaderField
	for _, kv := range tools.NewHeadersWithH2(orderHeaders, pairs) {
		headers = append(headers, hpack.HeaderField{Name: kv[0], Value: kv[1]})
	}
	return &Request{
		Scheme:    req.URL.Scheme,
		Authority: host,
		Method:    req.Method,
		Path:      path,
		Headers:   headers,
		HasBody:   actualContentLength(req) != 0,
	}, nil
}

// HTTP renders the response as a bodyless *http.Response: canonical header
// keys, announced trailers parsed into Trailer, ContentLength taken from the
// header or 0 when the stream ended with this block.
func (obj *Response) HTTP() *http.Response {
	res := &http.Response{
		Proto:      "HTTP/2.0",
		ProtoMajor: 2,
		Header:     make(http.Header),
		StatusCode: obj.Status,
		Status:     strconv.Itoa(obj.Status) + " " + http.StatusText(obj.Status),
	}
	for _, hf := range obj.Headers {
		key := http.CanonicalHeaderKey(hf.Name)
		if key == "Trailer" {
			if res.Trailer == nil {
				res.Trailer = make(http.Header)
			}
			for _, f := range strings.Split(hf.Value, ",") {
				if f = textproto.TrimString(f); f != "" {
					res.Trailer[http.CanonicalHeaderKey(f)] = nil
				}
			}
		} else {
			res.Header.Add(key, hf.Value)
		}
	}
	res.ContentLength = -1
	if clens := res.Header["Content-Length"]; len(clens) >= 1 {
		if cl, err := strconv.ParseUint(clens[0], 10, 63); err == nil {
			res.ContentLength = int64(cl)
		}
	} else if !obj.HasBody {
		res.ContentLength = 0
	}
	return res
}
