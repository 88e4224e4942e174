package db

import (
	"context"
	"database/sql"
	"time"

	"github.com/kimhsiao/likevault/internal/models"
)

// lookupID is a connect-or-create against a (id, <column> UNIQUE) lookup table.
func (s *Queries) lookupID(ctx context.Context, table, column, value string) (int64, error) {
	insert := "INSERT INTO " + table + " (" + column + ") VALUES (?) ON CONFLICT(" + column + ") DO NOTHING"
	if _, err := s.q.ExecContext(ctx, insert, value); err != nil {
		return 0, wrapErr(err, "insert "+table)
	}
	var id int64
	err := s.q.QueryRowContext(ctx, "SELECT id FROM "+table+" WHERE "+column+" = ?", value).Scan(&id)
	return id, wrapErr(err, "lookup "+table)
}

// LookupExtension returns the id for a file extension, creating it if new.
func (s *Queries) LookupExtension(ctx context.Context, ext string) (int64, error) {
	return s.lookupID(ctx, "file_extensions", "extension", ext)
}

// LookupMimeType returns the id for a MIME type, creating it if new.
func (s *Queries) LookupMimeType(ctx context.Context, mime string) (int64, error) {
	return s.lookupID(ctx, "mime_types", "mime", mime)
}

// UpsertLocalFile inserts f keyed by hash. If the hash is already known the
// existing row wins and is returned unchanged.
func (s *Queries) UpsertLocalFile(ctx context.Context, f *models.LocalFile) (*models.LocalFile, error) {
	extID, err := s.LookupExtension(ctx, f.Extension)
	if err != nil {
		return nil, err
	}
	mimeID, err := s.LookupMimeType(ctx, f.MimeType)
	if err != nil {
		return nil, err
	}
	if f.CreatedAt == 0 {
		f.CreatedAt = time.Now().Unix()
	}

	query := `
	INSERT INTO local_files (hash, size, extension_id, mime_type_id, created_at)
	VALUES (?, ?, ?, ?, ?)
	ON CONFLICT(hash) DO NOTHING
	`
	if _, err := s.q.ExecContext(ctx, query, f.Hash, f.Size, extID, mimeID, f.CreatedAt); err != nil {
		return nil, wrapErr(err, "insert local file")
	}
	return s.GetLocalFile(ctx, f.Hash)
}

const localFileColumns = `
	lf.hash, lf.size, e.extension, m.mime, lf.created_at
	FROM local_files lf
	JOIN file_extensions e ON e.id = lf.extension_id
	JOIN mime_types m ON m.id = lf.mime_type_id
`

func scanLocalFile(row *sql.Row) (*models.LocalFile, error) {
	var f models.LocalFile
	if err := row.Scan(&f.Hash, &f.Size, &f.Extension, &f.MimeType, &f.CreatedAt); err != nil {
		return nil, err
	}
	return &f, nil
}

// GetLocalFile retrieves a file row by hash.
func (s *Queries) GetLocalFile(ctx context.Context, hash models.Hash) (*models.LocalFile, error) {
	row := s.q.QueryRowContext(ctx, "SELECT"+localFileColumns+"WHERE lf.hash = ?", hash)
	f, err := scanLocalFile(row)
	if err != nil {
		return nil, wrapErr(err, "get local file "+hash.Hex())
	}
	return f, nil
}

// LatestFileForURL returns the file referenced by the most recently created
// media row with the given source URL.
func (s *Queries) LatestFileForURL(ctx context.Context, url string) (*models.LocalFile, error) {
	query := "SELECT" + localFileColumns + `
	JOIN media md ON md.local_file_hash = lf.hash
	WHERE md.url = ?
	ORDER BY md.created_at DESC, md.rowid DESC
	LIMIT 1`
	f, err := scanLocalFile(s.q.QueryRowContext(ctx, query, url))
	if err != nil {
		return nil, wrapErr(err, "get file for url")
	}
	return f, nil
}
