// Package services holds the HTTP clients for the three remote APIs a sync touches.
//
// # Source catalog
//
// [SpotifyService] implements [PlaylistSource]. It authenticates with the client-credentials
// grant from [clientcredentials.Config], so tokens are fetched and refreshed by the transport and
// no user consent is required. Playlist items are read 100 at a time with a field filter that
// only asks for what [models.Track] needs.
//
// # Target search
//
// [YTMusicService] implements [CatalogSearcher] by calling the FastAPI proxy that wraps
// ytmusicapi. Searches are unauthenticated and always use the songs filter.
//
// # Target writes
//
// [YouTubeService] implements [PlaylistWriter] against the YouTube Data API v3. It takes an
// authorized client from a [ClientSource] on every call.
//
// # Error Handling
//
// Services wrap typed errors from the shared package:
//   - [shared.ErrMissingCredentials] : client id or secret not configured
//   - [shared.ErrInvalidReference] : no playlist URL in the reference
//   - [shared.ErrCatalogUnavailable] : source playlist could not be read
//   - [shared.ErrSearchFailed] : proxy search failed
//   - [shared.ErrAPIRequest] : Data API call failed
package services
