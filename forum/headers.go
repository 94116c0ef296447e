package forum

import "net/http"

// pageHeaders returns the headers a browser sends when navigating to a page.
// Keys are set verbatim (not canonicalised) so lower-case client hints go out
// exactly as a browser writes them.
func (c *Client) pageHeaders(referer string) http.Header {
	cfg := c.cfg
	h := http.Header{}
	set := func(k, v string) {
		if v != "" {
			h[k] = []string{v}
		}
	}
	set("User-Agent", cfg.UserAgent)
	set("Accept", cfg.Accept)
	set("Accept-Language", cfg.AcceptLanguage)
	set("Accept-Encoding", cfg.AcceptEncoding)
	set("Upgrade-Insecure-Requests", "1")
	set("sec-ch-ua", cfg.SecCHUA)
	set("sec-ch-ua-mobile", cfg.SecCHUAMobile)
	set("sec-ch-ua-platform", cfg.SecCHUAPlatform)
	set("sec-fetch-dest", cfg.SecFetchDest)
	set("sec-fetch-mode", cfg.SecFetchMode)
	set("sec-fetch-site", cfg.SecFetchSite)
	set("Cache-Control", cfg.CacheControl)
	set("Pragma", cfg.Pragma)
	set("Referer", referer)
	set("Cookie", cfg.Cookie)
	for k, v := range cfg.ExtraHeaders {
		set(k, v)
	}
	return h
}

// apiHeaders 在页面请求头基础上改成同源 XHR（JSON body）的请求头。
func (c *Client) apiHeaders(referer, csrfToken string) http.Header {
	if referer == "" {
		referer = c.cfg.BaseURL
	}
	h := c.pageHeaders(referer)
	delete(h, "Upgrade-Insecure-Requests")
	h["Accept"] = []string{"application/json, text/plain, */*"}
	h["Content-Type"] = []string{"application/json"}
	h["Origin"] = []string{c.cfg.BaseURL}
	h["sec-fetch-dest"] = []string{"empty"}
	h["sec-fetch-mode"] = []string{"cors"}
	h["sec-fetch-site"] = []string{"same-origin"}
	h["X-Requested-With"] = []string{"XMLHttpRequest"}
	if csrfToken != "" {
		h["csrf-token"] = []string{csrfToken}
	}
	return h
}
