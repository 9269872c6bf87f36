// Package archive is the client for a password-protected mailing-list
// archive such as a Mailman private archive.
//
// A Client logs in with a member's credentials, enumerates the monthly
// digests available to that member and downloads them one at a time:
//
//	client := archive.NewClient(httpClient, loginURL, archiveURL)
//	session, err := client.Authenticate(ctx, user, pass)
//	listing, err := client.ListDigests(ctx, session)
//	for ref := range listing.All() {
//		digest, err := client.FetchDigest(ctx, session, ref)
//		path, err := store.StoreDigest(ref, digest.Body)
//	}
//
// Every failure is returned as one of AuthError, ListError, FetchError or
// IOError. The cause can be inspected with errors.Is against the package
// sentinels, for example ErrDigestMissing for months the archive has no
// digest for.
package archive
