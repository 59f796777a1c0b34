// Package backup converts an account store to and from a portable document.
//
// The same document is used for the on-disk snapshot and for user exports.
// It carries a version, an export timestamp and the ordered account list with
// canonical base32 secrets, so an export imported with Replace into an empty
// store reproduces the list exactly, ids included.
//
// JSON and YAML are supported through the Codec interface; CodecFor picks one
// by file extension. Reading ignores unknown fields, accepts documents without
// ids or code parameters, and understands the 1.0 export of the previous
// desktop application, where accounts are keyed by name:
//
//	{
//	  "version": "1.0",
//	  "accounts": {
//	    "GitHub_octocat": {"secret": "JBSWY3DPEHPK3PXP", "account": "octocat", "issuer": "GitHub", "added": 1700000000.5}
//	  },
//	  "exported_at": 1700000100.0
//	}
//
// Example:
//
//	data, err := backup.Export(store, backup.JSONCodec{}, time.Now())
//	...
//	res, err := backup.Import(ctx, other, data, backup.CodecFor("accounts.json"), backup.SkipDuplicates)
//	fmt.Printf("added %d, skipped %d, failed %d\n", res.Added, res.Skipped, len(res.Failed))
package backup
