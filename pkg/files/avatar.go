package files

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/hashicorp/go-hclog"
	"github.com/spf13/afero"

	"github.com/brandonyach/teamworksams/pkg/client"
	"github.com/brandonyach/teamworksams/pkg/table"
	"github.com/brandonyach/teamworksams/pkg/users"
)

// avatarMappingExtensions are the image types a directory scan picks up
// when generating a mapping table.
var avatarMappingExtensions = map[string]struct{}{
	".png": {}, ".jpg": {}, ".jpeg": {}, ".svg": {}, ".gif": {},
	".webp": {}, ".tiff": {}, ".heic": {},
}

// AvatarOptions adjusts UploadAvatars.
type AvatarOptions struct {
	Logger hclog.Logger
}

// UploadAvatars uploads profile pictures and assigns them to accounts. The
// mapping table needs a userKey column identifying the account and a
// file_name column naming an image inside dir; a nil mapping is generated
// from the directory contents with CreateAvatarMapping.
func (s *Service) UploadAvatars(ctx context.Context, mapping *table.Table, dir, userKey string, opts AvatarOptions) ([]FileResult, error) {
	if mapping == nil {
		var err error
		mapping, err = CreateAvatarMapping(s.fs, dir, userKey)
		if err != nil {
			return nil, err
		}
	}
	if err := validateMapping(mapping, userKey, "file_name"); err != nil {
		return nil, err
	}
	log := s.log
	if opts.Logger != nil {
		log = opts.Logger.Named("files")
	}

	results := make([]FileResult, mapping.Len())
	pending := make([]int, 0, mapping.Len())
	for i, row := range mapping.Rows() {
		results[i] = FileResult{
			Key:      row.Get(userKey).String(),
			FileName: row.Get("file_name").String(),
		}
		if err := validExtension(results[i].FileName, avatarExtensions); err != nil {
			results[i].Reason = err.Error()
			continue
		}
		pending = append(pending, i)
	}

	pending, err := s.resolveTargets(ctx, mapping, userKey, results, pending)
	if err != nil {
		return nil, err
	}

	update := table.New(userKey, "avatar_id")
	uploaded := pending[:0]
	for _, i := range pending {
		up, err := s.upload(ctx, dir, results[i].FileName, processorAvatar)
		if err != nil {
			results[i].Reason = fmt.Sprintf("upload failed: %v", err)
			continue
		}
		results[i].FileID = up.FileID
		results[i].ServerName = up.ServerName
		update.Append(table.Row{
			userKey:     table.String(results[i].Key),
			"avatar_id": table.Int(up.FileID),
		})
		uploaded = append(uploaded, i)
	}

	if update.Len() == 0 {
		log.Warn("no avatars uploaded")
		return results, nil
	}

	log.Info("assigning avatars", "count", update.Len())
	saved, err := users.EditUser(ctx, s.client, update, userKey, users.Options{Logger: opts.Logger})
	if err != nil {
		for _, i := range uploaded {
			results[i].Reason = fmt.Sprintf("avatar update failed: %v", err)
		}
		return results, nil
	}
	byKey := make(map[string]users.OpResult, len(saved))
	for _, r := range saved {
		byKey[r.Key] = r
	}
	for _, i := range uploaded {
		r, ok := byKey[results[i].Key]
		if !ok || !r.OK {
			results[i].Reason = fmt.Sprintf("avatar update failed: %s", r.Reason)
			continue
		}
		results[i].UserID = r.UserID
		results[i].OK = true
	}
	log.Info("updated avatars",
		"succeeded", Succeeded(results), "failed", len(results)-Succeeded(results))
	return results, nil
}

// CreateAvatarMapping scans dir for image files and builds a mapping table
// pairing each file with the account named by its stem, so a directory of
// "jane.doe.png" style files maps straight onto usernames.
func CreateAvatarMapping(fs afero.Fs, dir, userKey string) (*table.Table, error) {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	entries, err := afero.ReadDir(fs, dir)
	if err != nil {
		return nil, client.WrapError(err, fmt.Sprintf("cannot read directory '%s'", dir))
	}

	t := table.New(userKey, "file_name")
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if _, ok := avatarMappingExtensions[ext]; !ok {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)
	for _, name := range names {
		stem := strings.TrimSuffix(name, filepath.Ext(name))
		t.Append(table.Row{
			userKey:     table.String(stem),
			"file_name": table.String(name),
		})
	}
	if t.Len() == 0 {
		return nil, client.NewError(
			fmt.Sprintf("no valid image files found in '%s'", dir))
	}
	return t, nil
}
