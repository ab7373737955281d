// Package server implements the blog backend HTTP API: user accounts with
// bearer-token auth, blog post CRUD with media uploads, the landing page
// singleton (hero media and reels) and site-wide settings. Documents live
// in MongoDB; uploaded media goes to S3-compatible object storage.
package server
