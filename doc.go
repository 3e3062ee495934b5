// Package ftpfetch implements the FTP fetch-session engine of a crawling
// agent: for each requested resource it opens and authenticates a pooled
// control connection, issues a transfer or listing command, negotiates and
// drains a passive data connection, decodes directory listings with a
// protocol-level fallback from MLSD to LIST, and guarantees release of
// pooled resources on every exit path.
//
// # Usage
//
//	client := ftpfetch.NewClient(ftpfetch.Config{})
//	defer client.Close()
//
//	req, _ := ftpfetch.ParseRequest("ftp://example.org/pub/file.txt")
//	resp, err := client.Fetch(ctx, req)
//
// For finer control over connection reuse, drive a Session directly and
// finish it with Clean (reuse) or Close (discard).
//
// Crawl scheduling, URL filtering, robots policy, and archive writing are
// the surrounding engine's concern; this package performs no retries of
// its own beyond the single sanctioned MLSD-to-LIST listing fallback.
package ftpfetch
