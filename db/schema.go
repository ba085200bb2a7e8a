package db

import "fmt"

func (d *db) CreateFreshDB() error {
	var err error

	// check if there is data in the table already
	tableExists, err := d.checkIfTableExists("deployments")
	if err != nil {
		return fmt.Errorf("error while checking if table already exists err=%w", err)
	}

	if tableExists {
		d.log.Debug("Table already exists, skipping new schema generation", "table", "deployments")

		// not an error, the rest of the program continues with the existing schema
		return nil
	}

	schema := `create table deployments
(
    id        TEXT    not null
        constraint deployments_pk
            primary key,
    action    TEXT    not null,
    started   INTEGER not null,
    finished  INTEGER not null,
    succeeded INTEGER default 0,
    unready   TEXT    default '',
    error     TEXT    default ''
);

create index deployments_started_index
    on deployments (started);

create table backups
(
    id           INTEGER
        constraint backups_pk
            primary key autoincrement,
    name         TEXT    not null,
    path         TEXT    not null,
    size         INTEGER default 0,
    remote_key   TEXT    default '',
    created      INTEGER not null,
    succeeded    INTEGER default 0,
    failed_stage TEXT    default '',
    error        TEXT    default ''
);

create unique index backups_name_uindex
    on backups (name);`

	d.log.Debug("Creating new db schema")

	_, err = d.db.Exec(schema)
	if err != nil {
		d.log.Error("Could not run create schema query", "err", err)

		return err
	}

	d.log.Debug("New db schema created")

	return nil
}
