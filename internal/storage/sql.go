package storage

import (
	_ "embed"
)

//go:embed schema.sql
var schemaSQL string

const (
	insertObservationSQL = `
INSERT INTO observations (
                          filename,
                          source,
                          origin,
                          mjd,
                          freq,
                          bw,
                          t_int,
                          nchan,
                          nsub,
                          rotate)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	insertAstrodataSQL = `
INSERT INTO astrodata (observation_id, data)
VALUES (?, ?)`

	deleteAstrodataSQL = `
DELETE FROM astrodata
WHERE
    observation_id = ?`

	selectObservationSQL = `
SELECT
    id,
    ctime,
    filename,
    source,
    origin,
    mjd,
    freq,
    bw,
    t_int,
    nchan,
    nsub,
    rotate
FROM observations
WHERE
    id = ?`

	selectObservationsSQL = `
SELECT
    id,
    ctime,
    filename,
    source,
    origin,
    mjd,
    freq,
    bw,
    t_int,
    nchan,
    nsub,
    rotate
FROM observations`

	selectAstrodataSQL = `
SELECT data
FROM astrodata
WHERE
    observation_id = ?`

	deleteObservationSQL = `
DELETE FROM observations
WHERE
    id = ?`

	insertProfileSQL = `
INSERT INTO profiles (observation_id, kind, data)
VALUES (?, ?, ?)`

	selectProfileSQL = `
SELECT data
FROM profiles
WHERE
    observation_id = ? AND kind = ?`
)
