package main

import (
	"context"
	"fmt"

	"github.com/trezcool/homeschool/core/user"
)

// addUser registers a new user.User.
func (cli *commandLine) addUser(nu user.NewUser) error {
	usr, err := cli.usrSvc.Register(context.Background(), nu)
	if err != nil {
		return err
	}
	fmt.Printf("User %s created (id %d)\n", usr.Username, usr.ID)
	return nil
}
