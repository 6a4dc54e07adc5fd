/*
# Android Key Attestation Data Types

This package contains data types and parsing functions for the Android key
attestation extension (OID 1.3.6.1.4.1.11129.2.1.17).

## Attestation Record Format

To give a *rough* understanding of how the extension is formed, see the outline below:

	KeyDescription ::= SEQUENCE {
	    attestationVersion         INTEGER,
	    attestationSecurityLevel   SecurityLevel,
	    keymasterVersion           INTEGER,
	    keymasterSecurityLevel     SecurityLevel,
	    attestationChallenge       OCTET STRING,
	    uniqueId                   OCTET STRING,
	    softwareEnforced           AuthorizationList,
	    teeEnforced                AuthorizationList,
	}

	AuthorizationList ::= SEQUENCE {
	    purpose                    [1]   EXPLICIT SET OF INTEGER OPTIONAL,
	    algorithm                  [2]   EXPLICIT INTEGER OPTIONAL,
	    keySize                    [3]   EXPLICIT INTEGER OPTIONAL,
	    ...
	    rootOfTrust                [704] EXPLICIT RootOfTrust OPTIONAL,
	    ...
	    attestationApplicationId   [709] EXPLICIT OCTET STRING OPTIONAL,
	    ...
	}

Each authorization is an explicitly tagged value; the tag number identifies the
field. Tags are expected in ascending order, but real-world records are not
always well formed: out-of-order tags are recorded as a diagnostic and surfaced
to the caller instead of failing the decode.

	RootOfTrust ::= SEQUENCE {
	    verifiedBootKey            OCTET STRING,
	    deviceLocked               BOOLEAN,
	    verifiedBootState          VerifiedBootState,
	    verifiedBootHash           OCTET STRING,  -- attestation version >= 3
	}

	AttestationApplicationId ::= SEQUENCE {
	    packageInfos               SET OF AttestationPackageInfo,
	    signatureDigests           SET OF OCTET STRING,
	}
*/
package types
