// Package storage writes downloaded assets to disk and answers "already
// downloaded?" per destination directory.
//
// A Manager owns one directory. On creation it indexes the stems of the files
// already present, so an asset saved as "Sunset.png" in an earlier run blocks
// a later "Sunset" download regardless of the extension the new response
// would get. Claim and Release reserve an identifier while it is being
// fetched, which keeps two workers sharing a directory from fetching the same
// asset twice.
//
// Writes go to a temp file in the destination directory followed by a rename,
// so a crash never leaves a partial file under a real name. Names longer than
// the filesystem component limit are cut by TruncateFilename, which keeps the
// extension.
//
// Usage:
//
//	registry := storage.NewRegistry(255)
//	manager, err := registry.Manager("downloads/earthporn")
//	if err != nil {
//	    return err
//	}
//
//	if manager.Claim("Morning fog") {
//	    path, err := manager.SaveAsset(body, "Morning fog", ".jpg")
//	    if err != nil {
//	        manager.Release("Morning fog")
//	    }
//	}
package storage
