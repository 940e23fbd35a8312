// Package testutil holds test infrastructure shared by taskflow packages:
// an in-memory Redis server usable wherever the cluster runtime or the
// event handlers need one, and helpers that tie component lifecycles to
// testing.T.
//
//	func TestWorker(t *testing.T) {
//	    srv := testutil.NewRedisServer()
//	    testutil.T(t).Setup(srv)
//	    rdb := srv.Client()
//	    // ...
//	}
//
// Graph fixtures with their expected results live in testutil/fixtures.
package testutil
